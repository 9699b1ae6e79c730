package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"noe/internal/app/policies"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
	"noe/internal/infra/api"
	"noe/internal/infra/obs"
)

var (
	ErrInFlight     = errors.New("proposals: a response for this proposal is already in flight")
	ErrNotRecipient = errors.New("proposals: only the receiving party may respond")
	ErrNotPayable   = errors.New("proposals: proposal is not awaiting payment")
	ErrInvalidPrice = errors.New("proposals: price must be positive")
	ErrChatRequired = errors.New("proposals: chat id required")
)

type API interface {
	CreateProposal(ctx context.Context, params api.CreateProposalParams) (api.ProposalResponse, error)
	AcceptProposal(ctx context.Context, id chat.ProposalID) error
	RejectProposal(ctx context.Context, id chat.ProposalID) error
	CreatePaymentSession(ctx context.Context, id chat.ProposalID) (api.PaymentSession, error)
}

type Store interface {
	Apply(reducers ...chat.Reducer) chat.State
	Snapshot() chat.State
}

// Checkout is the hand-off to the hosted payment page.
type Checkout struct {
	SessionID string
	URL       string
}

type Service struct {
	api          API
	store        Store
	notifier     policies.Notifier
	logger       *slog.Logger
	me           user.ID
	checkoutBase string
	now          func() time.Time

	mu       sync.Mutex
	inFlight map[chat.ProposalID]struct{}
}

type Options struct {
	CheckoutBaseURL string
	Logger          *slog.Logger
}

func NewService(client API, store Store, notifier policies.Notifier, me user.ID, opts Options) (*Service, error) {
	if client == nil || store == nil {
		return nil, errors.New("proposals: api and store required")
	}
	if me == "" {
		return nil, user.ErrIDRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = obs.Discard()
	}
	if notifier == nil {
		notifier = policies.NotifierFunc(func(context.Context, policies.Notification) error { return nil })
	}
	return &Service{
		api:          client,
		store:        store,
		notifier:     notifier,
		logger:       logger,
		me:           me,
		checkoutBase: strings.TrimRight(opts.CheckoutBaseURL, "/"),
		now:          time.Now,
		inFlight:     make(map[chat.ProposalID]struct{}),
	}, nil
}

type CreateParams struct {
	Price   decimal.Decimal
	RouteID string
	UserID  user.ID
	Message string
	ChatID  chat.ConversationID
}

// Create sends a proposal and appends it to the conversation as a message
// sent by the transporter.
func (s *Service) Create(ctx context.Context, params CreateParams) (chat.Message, error) {
	if !params.Price.IsPositive() {
		return chat.Message{}, ErrInvalidPrice
	}
	if params.ChatID == "" {
		return chat.Message{}, ErrChatRequired
	}
	resp, err := s.api.CreateProposal(ctx, api.CreateProposalParams{
		Price:   params.Price,
		RouteID: params.RouteID,
		UserID:  params.UserID,
		Message: params.Message,
		ChatID:  params.ChatID,
	})
	if err != nil {
		s.notify(ctx, policies.NewNotification(policies.KindError, "Erro ao enviar proposta: "+err.Error(), ""))
		return chat.Message{}, fmt.Errorf("proposals: create: %w", err)
	}
	sender := resp.Transporter
	if sender.ID == "" {
		sender.ID = s.me
	}
	proposal := resp.Proposal()
	if proposal.Status == "" {
		proposal.Status = chat.ProposalPending
	}
	msg := chat.Message{
		ID:        chat.MessageID(resp.ID),
		ChatID:    params.ChatID,
		Sender:    sender,
		Proposal:  &proposal,
		CreatedAt: s.now().UTC(),
	}
	s.store.Apply(chat.AppendMessage(params.ChatID, msg), chat.RecordLastMessage(params.ChatID, msg))
	return msg, nil
}

// Accept and Reject are mutually exclusive one-shot responses. While either is
// in flight for a proposal, further calls fail with ErrInFlight.
func (s *Service) Accept(ctx context.Context, id chat.ProposalID) error {
	return s.respond(ctx, id, chat.ProposalAccepted)
}

func (s *Service) Reject(ctx context.Context, id chat.ProposalID) error {
	return s.respond(ctx, id, chat.ProposalRejected)
}

func (s *Service) respond(ctx context.Context, id chat.ProposalID, to chat.ProposalStatus) error {
	if msg, ok := s.store.Snapshot().FindProposal(id); ok && !chat.CanRespond(s.me, msg) {
		if !chat.CanTransition(msg.Proposal.Status, to) {
			return chat.ErrInvalidTransition
		}
		return ErrNotRecipient
	}
	if !s.acquire(id) {
		return ErrInFlight
	}
	defer s.release(id)

	// A response may have landed while this call waited for the guard.
	if msg, ok := s.store.Snapshot().FindProposal(id); ok && !chat.CanTransition(msg.Proposal.Status, to) {
		return chat.ErrInvalidTransition
	}

	call, okTitle, errTitle := s.api.AcceptProposal, "Proposta aceita com sucesso!", "Erro ao aceitar proposta"
	if to == chat.ProposalRejected {
		call, okTitle, errTitle = s.api.RejectProposal, "Proposta recusada com sucesso!", "Erro ao recusar proposta"
	}
	if err := call(ctx, id); err != nil {
		s.notify(ctx, policies.NewNotification(policies.KindError, errTitle, ""))
		return fmt.Errorf("proposals: %s: %w", to, err)
	}
	s.store.Apply(chat.ReplaceProposalStatus(id, to))
	s.notify(ctx, policies.NewNotification(policies.KindSuccess, okTitle, ""))
	return nil
}

// Pay creates the checkout session for an accepted, unpaid proposal. The paid
// status is only ever learned from the server afterwards.
func (s *Service) Pay(ctx context.Context, id chat.ProposalID) (Checkout, error) {
	msg, ok := s.store.Snapshot().FindProposal(id)
	if !ok || !chat.CanPay(msg) {
		return Checkout{}, ErrNotPayable
	}
	if !s.acquire(id) {
		return Checkout{}, ErrInFlight
	}
	defer s.release(id)

	session, err := s.api.CreatePaymentSession(ctx, id)
	if err != nil {
		s.notify(ctx, policies.NewNotification(policies.KindError, "Erro ao criar pagamento", ""))
		return Checkout{}, fmt.Errorf("proposals: pay: %w", err)
	}
	url := session.URL
	if url == "" && s.checkoutBase != "" {
		url = s.checkoutBase + "/" + session.SessionID
	}
	return Checkout{SessionID: session.SessionID, URL: url}, nil
}

// CanRespond reports whether the current user may answer the proposal.
func (s *Service) CanRespond(msg chat.Message) bool {
	return chat.CanRespond(s.me, msg)
}

func (s *Service) acquire(id chat.ProposalID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) release(id chat.ProposalID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Service) notify(ctx context.Context, n policies.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}
