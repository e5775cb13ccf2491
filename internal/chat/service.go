package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chatbuddy/chatbot-backend/internal/completion"
	"github.com/chatbuddy/chatbot-backend/internal/model"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// Client-facing reply strings. These are part of the API contract; tests
// assert them verbatim.
const (
	replyMissingEmail    = "Email is required to start chatting."
	replyMissingQuery    = "Query or name is required to proceed."
	replyStoreFailure    = "Server error. Please try again later."
	replyProviderFailure = "Unable to process your request at the moment."
	replySummaryFailure  = "Unable to summarize the chat at the moment."
	replyNoHistory       = "No chat history found for your account."
)

const summaryPromptPrefix = "Summarize the following chat history:\n\n"

var summaryTriggers = []string{"summarize our conversation", "summarize chat"}

// Options tune the per-path completion parameters.
type Options struct {
	ReplyMaxTokens   int
	SummaryMaxTokens int
	Temperature      float32
	// DisableCanned skips the canned-response lookup on the generation path.
	DisableCanned bool
}

func (o *Options) applyDefaults() {
	if o.ReplyMaxTokens <= 0 {
		o.ReplyMaxTokens = 150
	}
	if o.SummaryMaxTokens <= 0 {
		o.SummaryMaxTokens = 200
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.7
	}
}

// TurnRequest is one user utterance. Query and Name are optional; a request
// must carry at least one of them.
type TurnRequest struct {
	Email string `json:"email"`
	Query string `json:"query,omitempty"`
	Name  string `json:"name,omitempty"`
}

// TurnReply is the system's answer for one turn.
type TurnReply struct {
	Reply string `json:"reply"`
}

// Service is the single orchestration point for a chat turn: it validates
// input, resolves user identity, dispatches to a profile intent, the
// summarization path, or the generation path, and logs the exchange.
type Service struct {
	store    store.Store
	provider completion.Provider
	log      zerolog.Logger
	opts     Options
}

func NewService(s store.Store, p completion.Provider, log zerolog.Logger, opts Options) *Service {
	opts.applyDefaults()
	return &Service{store: s, provider: p, log: log, opts: opts}
}

// SubmitTurn processes one request/response exchange. Errors are always
// *model.TurnError; every failure is per-turn and leaves the service usable.
func (s *Service) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	if req.Email == "" {
		return nil, model.NewTurnError(model.ErrValidation, replyMissingEmail, nil)
	}
	if req.Query == "" && req.Name == "" {
		return nil, model.NewTurnError(model.ErrValidation, replyMissingQuery, nil)
	}

	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// New user: register and greet. No dispatch happens on the creation
		// turn, even when a query was supplied. The name is accepted as-is.
		user, err = s.store.Users().Create(ctx, &model.User{Email: req.Email, Name: req.Name})
		if err != nil {
			s.log.Error().Err(err).Str("email", req.Email).Msg("user create failed")
			return nil, model.NewTurnError(model.ErrStore, replyStoreFailure, err)
		}
		return &TurnReply{Reply: fmt.Sprintf("Hello, %s! How can I assist you today?", user.Name)}, nil
	case err != nil:
		s.log.Error().Err(err).Str("email", req.Email).Msg("user lookup failed")
		return nil, model.NewTurnError(model.ErrStore, replyStoreFailure, err)
	}

	if req.Query == "" {
		return &TurnReply{Reply: fmt.Sprintf("Welcome back, %s! How can I assist you today?", user.Name)}, nil
	}

	return s.dispatch(ctx, user, req.Query)
}

// dispatch routes a returning user's query; first match wins.
func (s *Service) dispatch(ctx context.Context, user *model.User, query string) (*TurnReply, error) {
	switch strings.ToLower(query) {
	case "my profile":
		return &TurnReply{Reply: fmt.Sprintf("Your name is %s, and your email is %s.", user.Name, user.Email)}, nil
	case "what is my name":
		return &TurnReply{Reply: fmt.Sprintf("Your name is %s.", user.Name)}, nil
	case "what is my email":
		return &TurnReply{Reply: fmt.Sprintf("Your email is %s.", user.Email)}, nil
	}

	for _, trigger := range summaryTriggers {
		if strings.Contains(strings.ToLower(query), trigger) {
			return s.summarize(ctx, user)
		}
	}

	return s.generate(ctx, user, query)
}

// summarize feeds the user's full history, in write order, to the provider.
// Nothing is logged for a summarization turn.
func (s *Service) summarize(ctx context.Context, user *model.User) (*TurnReply, error) {
	msgs, err := s.store.Messages().ListByUser(ctx, user.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("userId", user.UserID).Msg("chat history read failed")
		return nil, model.NewTurnError(model.ErrStore, replyStoreFailure, err)
	}
	if len(msgs) == 0 {
		return &TurnReply{Reply: replyNoHistory}, nil
	}

	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Message
	}
	prompt := summaryPromptPrefix + strings.Join(texts, "\n")

	summary, err := s.provider.Complete(ctx, completion.Request{
		Prompt:      prompt,
		MaxTokens:   s.opts.SummaryMaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.log.Error().Err(err).Str("userId", user.UserID).Msg("summarization call failed")
		return nil, model.NewTurnError(model.ErrProvider, replySummaryFailure, err)
	}
	return &TurnReply{Reply: strings.TrimSpace(summary)}, nil
}

// generate answers a free-form query from the canned table or the provider.
// Write-ordering policy: both log rows are appended only after the reply is
// resolved, so a failed provider call leaves no partial history.
func (s *Service) generate(ctx context.Context, user *model.User, query string) (*TurnReply, error) {
	var reply string

	if !s.opts.DisableCanned {
		canned, err := s.store.Responses().Lookup(ctx, strings.ToLower(query))
		switch {
		case err == nil:
			reply = canned
		case !errors.Is(err, model.ErrNotFound):
			s.log.Error().Err(err).Msg("canned response lookup failed")
			return nil, model.NewTurnError(model.ErrStore, replyStoreFailure, err)
		}
	}

	if reply == "" {
		generated, err := s.provider.Complete(ctx, completion.Request{
			Prompt:      query,
			MaxTokens:   s.opts.ReplyMaxTokens,
			Temperature: s.opts.Temperature,
		})
		if err != nil {
			s.log.Error().Err(err).Str("userId", user.UserID).Msg("completion call failed")
			return nil, model.NewTurnError(model.ErrProvider, replyProviderFailure, err)
		}
		reply = strings.TrimSpace(generated)
	}

	s.appendBestEffort(ctx, user.UserID, model.SenderUser, query)
	s.appendBestEffort(ctx, user.UserID, model.SenderBot, reply)

	return &TurnReply{Reply: reply}, nil
}

// appendBestEffort writes one log row; a failure is reported but never fails
// the turn.
func (s *Service) appendBestEffort(ctx context.Context, userID string, sender model.Sender, text string) {
	if _, err := s.store.Messages().Append(ctx, &model.ChatMessage{UserID: userID, Sender: sender, Message: text}); err != nil {
		s.log.Error().Err(err).
			Str("userId", userID).
			Str("sender", string(sender)).
			Msg("chat history append failed")
	}
}
