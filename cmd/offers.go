package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dealbot/internal/channels"
	"github.com/nextlevelbuilder/dealbot/internal/config"
	"github.com/nextlevelbuilder/dealbot/internal/offers"
)

func offersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Inspect the offer catalog",
	}
	cmd.AddCommand(offersListCmd())
	cmd.AddCommand(offersMatchCmd())
	return cmd
}

func loadCatalogForCLI() (*config.Config, *offers.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := offers.LoadCatalog(config.ExpandHome(cfg.Knowledge.OffersFile))
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

func offersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the parsed catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := loadCatalogForCLI()
			if err != nil {
				return err
			}
			if c.Len() == 0 {
				fmt.Println("No offers parsed.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tVALUE\tURGENCY\tKEYWORDS")
			for _, o := range c.Offers {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					channels.Truncate(o.Name, 32), o.Category, o.Value, o.Urgency, strings.Join(o.Keywords, ","))
			}
			return tw.Flush()
		},
	}
}

func offersMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <message>",
		Short: "Analyze a message and show the best matching offer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := loadCatalogForCLI()
			if err != nil {
				return err
			}
			msg := strings.Join(args, " ")
			a := offers.Analyze(msg)

			fmt.Printf("Intent:     %s (confidence %.1f)\n", a.Intent, a.Confidence)
			fmt.Printf("Category:   %s\n", a.Category)
			fmt.Printf("Brands:     %s\n", strings.Join(a.Brands, ", "))
			fmt.Printf("Urgency:    %s\n", a.Urgency)
			fmt.Printf("Respond:    %v\n", a.ShouldRespond)

			ranked := offers.Rank(c, msg, a, cfg.Offers.MinScore)
			if len(ranked) == 0 {
				fmt.Println("Best offer: none")
				return nil
			}
			best := ranked[0]
			fmt.Printf("Best offer: %s (score %.1f)\n", best.Offer, best.Score)
			if best.Reasoning != "" {
				fmt.Printf("Reasoning:  %s\n", best.Reasoning)
			}
			for _, m := range ranked[1:] {
				fmt.Printf("  also: %s (%.1f)\n", m.Offer.Name, m.Score)
			}
			return nil
		},
	}
}
