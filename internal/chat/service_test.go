package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatbuddy/chatbot-backend/internal/completion"
	"github.com/chatbuddy/chatbot-backend/internal/model"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// --- Fakes ---

type fakeStore struct {
	usersByEmail map[string]*model.User
	msgs         []*model.ChatMessage
	canned       map[string]string

	failLookup bool
	failCreate bool
	failList   bool
	failAppend bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail: map[string]*model.User{},
		canned:       map[string]string{},
	}
}

func (f *fakeStore) Users() store.Users         { return &fakeUsers{f} }
func (f *fakeStore) Messages() store.Messages   { return &fakeMessages{f} }
func (f *fakeStore) Responses() store.Responses { return &fakeResponses{f} }

type fakeUsers struct{ p *fakeStore }

func (u *fakeUsers) Create(_ context.Context, m *model.User) (*model.User, error) {
	if u.p.failCreate {
		return nil, errors.New("insert failed")
	}
	if _, ok := u.p.usersByEmail[m.Email]; ok {
		return nil, errors.New("duplicate email")
	}
	out := *m
	out.UserID = fmt.Sprintf("u%d", len(u.p.usersByEmail)+1)
	out.CreationTime = time.Now()
	u.p.usersByEmail[m.Email] = &out
	return &out, nil
}

func (u *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u.p.failLookup {
		return nil, errors.New("lookup failed")
	}
	if m, ok := u.p.usersByEmail[email]; ok {
		return m, nil
	}
	return nil, model.ErrNotFound
}

type fakeMessages struct{ p *fakeStore }

func (m *fakeMessages) Append(_ context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	if m.p.failAppend {
		return nil, errors.New("append failed")
	}
	out := *msg
	out.MessageID = fmt.Sprintf("m%d", len(m.p.msgs)+1)
	out.Timestamp = time.Now()
	m.p.msgs = append(m.p.msgs, &out)
	return &out, nil
}

func (m *fakeMessages) ListByUser(_ context.Context, userID string) ([]*model.ChatMessage, error) {
	if m.p.failList {
		return nil, errors.New("list failed")
	}
	var res []*model.ChatMessage
	for _, msg := range m.p.msgs {
		if msg.UserID == userID {
			res = append(res, msg)
		}
	}
	return res, nil
}

type fakeResponses struct{ p *fakeStore }

func (r *fakeResponses) Lookup(_ context.Context, query string) (string, error) {
	if resp, ok := r.p.canned[query]; ok {
		return resp, nil
	}
	return "", model.ErrNotFound
}

func (r *fakeResponses) Put(_ context.Context, cr *model.CannedResponse) error {
	r.p.canned[cr.Query] = cr.Response
	return nil
}

type fakeProvider struct {
	reply string
	err   error
	calls []completion.Request
}

func (f *fakeProvider) Complete(_ context.Context, req completion.Request) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newService(fs *fakeStore, fp *fakeProvider) *Service {
	return NewService(fs, fp, zerolog.Nop(), Options{})
}

// registerAlice creates the canonical returning user used by most tests.
func registerAlice(t *testing.T, svc *Service) {
	t.Helper()
	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.Reply != "Hello, Alice! How can I assist you today?" {
		t.Fatalf("greeting mismatch: %q", out.Reply)
	}
}

// --- Tests ---

func TestSubmitTurn_NewUserGreeting(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "generated"}
	svc := newService(fs, fp)

	registerAlice(t, svc)
	if len(fs.usersByEmail) != 1 {
		t.Fatalf("expected one user, got %d", len(fs.usersByEmail))
	}

	// A repeated identical call must not create a second user; it falls into
	// the returning-user path instead.
	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("repeat register: %v", err)
	}
	if out.Reply != "Welcome back, Alice! How can I assist you today?" {
		t.Fatalf("returning-user reply mismatch: %q", out.Reply)
	}
	if len(fs.usersByEmail) != 1 {
		t.Fatalf("duplicate user created")
	}
}

func TestSubmitTurn_NewUserWithQuerySkipsDispatch(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "generated"}
	svc := newService(fs, fp)

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "b@x.com", Name: "Bob", Query: "what is the weather"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "Hello, Bob! How can I assist you today?" {
		t.Fatalf("creation turn must greet, got %q", out.Reply)
	}
	if len(fp.calls) != 0 {
		t.Fatalf("creation turn must not call the provider")
	}
	if len(fs.msgs) != 0 {
		t.Fatalf("creation turn must not log messages")
	}
}

func TestSubmitTurn_NewUserEmptyNameAcceptedAsIs(t *testing.T) {
	svc := newService(newFakeStore(), &fakeProvider{})

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "c@x.com", Query: "hello"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "Hello, ! How can I assist you today?" {
		t.Fatalf("empty name should pass through, got %q", out.Reply)
	}
}

func TestSubmitTurn_Validation(t *testing.T) {
	svc := newService(newFakeStore(), &fakeProvider{})

	_, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "", Query: "hi"})
	var te *model.TurnError
	if !errors.As(err, &te) || !errors.Is(err, model.ErrValidation) {
		t.Fatalf("missing email: want validation TurnError, got %v", err)
	}
	if te.Reply != "Email is required to start chatting." {
		t.Fatalf("missing email reply mismatch: %q", te.Reply)
	}

	_, err = svc.SubmitTurn(context.Background(), TurnRequest{Email: "b@x.com"})
	if !errors.As(err, &te) || !errors.Is(err, model.ErrValidation) {
		t.Fatalf("missing query and name: want validation TurnError, got %v", err)
	}
	if te.Reply != "Query or name is required to proceed." {
		t.Fatalf("missing query/name reply mismatch: %q", te.Reply)
	}
}

func TestSubmitTurn_ProfileIntents(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "generated"}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	cases := []struct{ query, want string }{
		{"my profile", "Your name is Alice, and your email is a@x.com."},
		{"My Profile", "Your name is Alice, and your email is a@x.com."},
		{"what is my name", "Your name is Alice."},
		{"WHAT IS MY EMAIL", "Your email is a@x.com."},
	}
	// Repeat each intent: they must be idempotent and leave no trace in the
	// conversation log.
	for round := 0; round < 3; round++ {
		for _, c := range cases {
			out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: c.query})
			if err != nil {
				t.Fatalf("intent %q: %v", c.query, err)
			}
			if out.Reply != c.want {
				t.Fatalf("intent %q: got %q want %q", c.query, out.Reply, c.want)
			}
		}
	}
	if len(fp.calls) != 0 {
		t.Fatalf("profile intents must not call the provider")
	}
	if len(fs.msgs) != 0 {
		t.Fatalf("profile intents must not write to the conversation log")
	}
	if len(fs.usersByEmail) != 1 {
		t.Fatalf("profile intents must not mutate user state")
	}
}

func TestSubmitTurn_SummarizeEmptyHistory(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "a summary"}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "summarize our conversation"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "No chat history found for your account." {
		t.Fatalf("empty history reply mismatch: %q", out.Reply)
	}
	if len(fp.calls) != 0 {
		t.Fatalf("empty history must not call the provider")
	}
}

func TestSubmitTurn_SummarizeReadsHistoryInOrder(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "  the summary  "}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	user := fs.usersByEmail["a@x.com"]
	for _, txt := range []string{"hi", "hello there"} {
		if _, err := fs.Messages().Append(context.Background(), &model.ChatMessage{UserID: user.UserID, Sender: model.SenderUser, Message: txt}); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "please summarize chat for me"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "the summary" {
		t.Fatalf("summary must be trimmed provider output, got %q", out.Reply)
	}

	if len(fp.calls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(fp.calls))
	}
	call := fp.calls[0]
	if call.MaxTokens != 200 || call.Temperature != 0.7 {
		t.Fatalf("summary sampling params: %+v", call)
	}
	wantBody := "hi\nhello there"
	if !strings.HasSuffix(call.Prompt, wantBody) || !strings.HasPrefix(call.Prompt, "Summarize the following chat history:") {
		t.Fatalf("summary prompt mismatch: %q", call.Prompt)
	}
	// Summarization turns are never logged.
	if len(fs.msgs) != 2 {
		t.Fatalf("summarization must not append to the log, n=%d", len(fs.msgs))
	}
}

func TestSubmitTurn_GenerationLogsAndRoundTrips(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: " bar "}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "foo"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "bar" {
		t.Fatalf("generation reply mismatch: %q", out.Reply)
	}

	if len(fp.calls) != 1 || fp.calls[0].Prompt != "foo" {
		t.Fatalf("provider must receive the verbatim query: %+v", fp.calls)
	}
	if fp.calls[0].MaxTokens != 150 || fp.calls[0].Temperature != 0.7 {
		t.Fatalf("generation sampling params: %+v", fp.calls[0])
	}

	if len(fs.msgs) != 2 {
		t.Fatalf("expected two log rows, got %d", len(fs.msgs))
	}
	if fs.msgs[0].Sender != model.SenderUser || fs.msgs[0].Message != "foo" {
		t.Fatalf("first row must be the user query: %+v", fs.msgs[0])
	}
	if fs.msgs[1].Sender != model.SenderBot || fs.msgs[1].Message != "bar" {
		t.Fatalf("second row must be the bot reply: %+v", fs.msgs[1])
	}

	// Round-trip: a later summarization must see the logged query verbatim.
	fp.reply = "summary"
	if _, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "summarize chat"}); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	last := fp.calls[len(fp.calls)-1]
	if !strings.Contains(last.Prompt, "foo") {
		t.Fatalf("summary prompt must contain prior query verbatim: %q", last.Prompt)
	}
}

func TestSubmitTurn_CannedResponseSkipsProvider(t *testing.T) {
	fs := newFakeStore()
	fs.canned["what are your hours?"] = "We are open 9-5."
	fp := &fakeProvider{reply: "generated"}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "What Are Your Hours?"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if out.Reply != "We are open 9-5." {
		t.Fatalf("canned reply mismatch: %q", out.Reply)
	}
	if len(fp.calls) != 0 {
		t.Fatalf("canned hit must not call the provider")
	}
	// Both sides of the exchange still land in the log.
	if len(fs.msgs) != 2 || fs.msgs[1].Message != "We are open 9-5." {
		t.Fatalf("canned exchange not logged: %+v", fs.msgs)
	}
}

func TestSubmitTurn_ProviderFailure(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{err: errors.New("upstream 500")}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	_, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "foo"})
	var te *model.TurnError
	if !errors.As(err, &te) || !errors.Is(err, model.ErrProvider) {
		t.Fatalf("want provider TurnError, got %v", err)
	}
	if te.Reply != "Unable to process your request at the moment." {
		t.Fatalf("provider failure reply mismatch: %q", te.Reply)
	}
	if len(fs.msgs) != 0 {
		t.Fatalf("failed generation must not log anything")
	}
}

func TestSubmitTurn_SummarizeProviderFailure(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "seed"}
	svc := newService(fs, fp)
	registerAlice(t, svc)
	if _, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "foo"}); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	fp.err = errors.New("upstream timeout")
	_, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "summarize our conversation"})
	var te *model.TurnError
	if !errors.As(err, &te) || !errors.Is(err, model.ErrProvider) {
		t.Fatalf("want provider TurnError, got %v", err)
	}
	if te.Reply != "Unable to summarize the chat at the moment." {
		t.Fatalf("summary failure reply mismatch: %q", te.Reply)
	}
	if len(fs.msgs) != 2 {
		t.Fatalf("failed summarization must not log anything, n=%d", len(fs.msgs))
	}
}

func TestSubmitTurn_StoreFailure(t *testing.T) {
	fs := newFakeStore()
	fs.failLookup = true
	svc := newService(fs, &fakeProvider{})

	_, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "hi"})
	var te *model.TurnError
	if !errors.As(err, &te) || !errors.Is(err, model.ErrStore) {
		t.Fatalf("want store TurnError, got %v", err)
	}
	if te.Reply != "Server error. Please try again later." {
		t.Fatalf("store failure reply mismatch: %q", te.Reply)
	}

	// The failure is per-request; the service stays usable.
	fs.failLookup = false
	if _, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Name: "Alice"}); err != nil {
		t.Fatalf("service unusable after store failure: %v", err)
	}
}

func TestSubmitTurn_LogWriteFailureIsBestEffort(t *testing.T) {
	fs := newFakeStore()
	fp := &fakeProvider{reply: "generated"}
	svc := newService(fs, fp)
	registerAlice(t, svc)

	fs.failAppend = true
	out, err := svc.SubmitTurn(context.Background(), TurnRequest{Email: "a@x.com", Query: "foo"})
	if err != nil {
		t.Fatalf("log-write failure must not fail the turn: %v", err)
	}
	if out.Reply != "generated" {
		t.Fatalf("reply mismatch: %q", out.Reply)
	}
}
