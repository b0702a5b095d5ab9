package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/dealbot/internal/channels"
)

type fakeSender struct {
	mu        sync.Mutex
	calls     []string
	typingErr error
	sendErr   error
}

func (f *fakeSender) SetTypingIndicator(_ context.Context, conv string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("typing:%s:%v", conv, typing))
	return f.typingErr
}

func (f *fakeSender) SendMessage(_ context.Context, conv, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "send:"+conv+":"+text)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "post_1", nil
}

type fakeRecorder struct{ ids []string }

func (r *fakeRecorder) RecordBotPost(id string) { r.ids = append(r.ids, id) }

func reply(text string) GenerateFunc {
	return func(context.Context) (string, error) { return text, nil }
}

func TestDispatch_Order(t *testing.T) {
	s := &fakeSender{}
	rec := &fakeRecorder{}
	d := New(s, rec)

	res, err := d.Dispatch(context.Background(), "feed_1", reply("hi there"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.MessageID != "post_1" || res.Text != "hi there" {
		t.Errorf("result = %+v", res)
	}

	want := []string{"typing:feed_1:true", "send:feed_1:hi there", "typing:feed_1:false"}
	if !reflect.DeepEqual(s.calls, want) {
		t.Errorf("calls = %v, want %v", s.calls, want)
	}
	if !reflect.DeepEqual(rec.ids, []string{"post_1"}) {
		t.Errorf("recorded = %v", rec.ids)
	}
}

func TestDispatch_TypingFailureIgnored(t *testing.T) {
	s := &fakeSender{typingErr: errors.New("boom")}
	d := New(s, nil)

	if _, err := d.Dispatch(context.Background(), "feed_1", reply("ok")); err != nil {
		t.Fatalf("typing errors must not fail dispatch: %v", err)
	}
}

func TestDispatch_SendFailure(t *testing.T) {
	s := &fakeSender{sendErr: errors.New("connection reset")}
	rec := &fakeRecorder{}
	d := New(s, rec)

	_, err := d.Dispatch(context.Background(), "feed_1", reply("ok"))
	if !errors.Is(err, channels.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if len(rec.ids) != 0 {
		t.Errorf("failed send recorded ids %v", rec.ids)
	}
	if got := s.calls[len(s.calls)-1]; got != "typing:feed_1:false" {
		t.Errorf("last call = %q, want typing off", got)
	}
}

func TestDispatch_GenerateFailure(t *testing.T) {
	s := &fakeSender{}
	d := New(s, &fakeRecorder{})
	upstream := errors.New("model down")

	_, err := d.Dispatch(context.Background(), "feed_1", func(context.Context) (string, error) {
		return "", upstream
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("err = %v", err)
	}

	want := []string{"typing:feed_1:true", "typing:feed_1:false"}
	if !reflect.DeepEqual(s.calls, want) {
		t.Errorf("calls = %v, want %v", s.calls, want)
	}

	if _, err := d.Dispatch(context.Background(), "feed_1", reply("")); !errors.Is(err, ErrNoReply) {
		t.Errorf("empty reply err = %v, want ErrNoReply", err)
	}
}
