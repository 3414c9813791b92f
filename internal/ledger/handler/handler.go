package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memoledger/internal/identity"
	"memoledger/internal/ledger/models"
	"memoledger/internal/ledger/service"
	"memoledger/internal/tokens"
	"memoledger/pkg/platform/httputil"
	"memoledger/pkg/requestcontext"
)

// Service is the ledger API the handlers drive.
type Service interface {
	InitializeLedger(ctx context.Context, admin string) (*models.GlobalState, error)
	RegisterAndIssueInitial(ctx context.Context, externalID string) (*models.UserAccount, error)
	MintDaily(ctx context.Context, externalID string) (uint64, error)
	LockForReward(ctx context.Context, externalID string, amount uint64) (*models.UserAccount, error)
	CreateConnection(ctx context.Context, req service.NewConnection) (*models.Connection, error)
	Unlock(ctx context.Context, connectionID, caller string, secret []byte) (models.UnlockResult, error)
	GetGlobalState(ctx context.Context) (*models.GlobalState, error)
	GetAccount(ctx context.Context, externalID string) (*models.UserAccount, error)
	GetConnection(ctx context.Context, connectionID string) (*models.Connection, error)
	Balances(ctx context.Context, externalID string) (*service.Balances, error)
	RewardSupply(ctx context.Context) (tokens.Amount, error)
	DeriveAccountKey(ns identity.Namespace, externalID string) (identity.Key, error)
}

type Handler struct {
	service       Service
	adminIdentity string
	logger        *slog.Logger
}

// New builds the ledger handlers. adminIdentity is recorded as the ledger
// administrator when the admin route initializes the ledger.
func New(service Service, adminIdentity string, logger *slog.Logger) *Handler {
	return &Handler{service: service, adminIdentity: adminIdentity, logger: logger}
}

// Register mounts the caller routes. The router must already authenticate callers.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/accounts", h.HandleRegister)
	r.Get("/v1/accounts/me", h.HandleGetAccount)
	r.Post("/v1/accounts/me/mint-daily", h.HandleMintDaily)
	r.Post("/v1/accounts/me/lock", h.HandleLock)
	r.Post("/v1/connections", h.HandleCreateConnection)
	r.Get("/v1/connections/{connectionID}", h.HandleGetConnection)
	r.Post("/v1/connections/{connectionID}/unlock", h.HandleUnlock)
	r.Get("/v1/ledger", h.HandleGetLedger)
	r.Get("/v1/keys/{namespace}/{externalID}", h.HandleDeriveKey)
}

// RegisterAdmin mounts operator routes. The router must already check the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/ledger/initialize", h.HandleInitialize)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	args := append([]any{"error", err, "request_id", requestcontext.RequestID(ctx)}, attrs...)
	h.logger.WarnContext(ctx, msg, args...)
	httputil.WriteError(w, err)
}

// HandleInitialize creates the ledger singleton.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := h.service.InitializeLedger(ctx, h.adminIdentity)
	if err != nil {
		h.fail(ctx, w, "initialize ledger failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLedgerResponse(g))
}

// HandleRegister registers the caller and issues the initial grant.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.service.RegisterAndIssueInitial(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "register failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAccountResponse(account, nil))
}

// HandleGetAccount returns the caller's account with balances.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.service.GetAccount(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "get account failed", err, "caller", caller)
		return
	}
	balances, err := h.service.Balances(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "get balances failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account, balances))
}

// HandleMintDaily mints the caller's remaining daily headroom.
func (h *Handler) HandleMintDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	minted, err := h.service.MintDaily(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "mint daily failed", err, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &MintDailyResponse{Minted: minted})
}

// HandleLock converts personal tokens into reward tokens.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[LockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.LockForReward(ctx, caller, req.Amount)
	if err != nil {
		h.fail(ctx, w, "lock failed", err, "caller", caller, "amount", req.Amount)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account, nil))
}

// HandleCreateConnection records a connection introduced by the caller.
func (h *Handler) HandleCreateConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateConnectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	conn, err := h.service.CreateConnection(ctx, service.NewConnection{
		ID:          req.ConnectionID,
		IdentityA:   req.IdentityA,
		IdentityB:   req.IdentityB,
		Beneficiary: caller,
		CommitA:     req.commitA,
		CommitB:     req.commitB,
	})
	if err != nil {
		h.fail(ctx, w, "create connection failed", err, "connection_id", req.ConnectionID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

// HandleGetConnection returns a connection and its unlock state.
func (h *Handler) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	connectionID := chi.URLParam(r, "connectionID")

	conn, err := h.service.GetConnection(ctx, connectionID)
	if err != nil {
		h.fail(ctx, w, "get connection failed", err, "connection_id", connectionID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConnectionResponse(conn))
}

// HandleUnlock reveals the counterpart's secret for the caller.
func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	connectionID := chi.URLParam(r, "connectionID")
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Unlock(ctx, connectionID, caller, []byte(req.Secret))
	if err != nil {
		h.fail(ctx, w, "unlock failed", err, "connection_id", connectionID, "caller", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &UnlockResponse{
		Side:           res.Side.String(),
		CallerUnlocked: res.CallerUnlocked,
		BothComplete:   res.BothComplete,
	})
}

// HandleGetLedger returns the global state and reward supply.
func (h *Handler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := h.service.GetGlobalState(ctx)
	if err != nil {
		h.fail(ctx, w, "get ledger failed", err)
		return
	}
	supply, err := h.service.RewardSupply(ctx)
	if err != nil {
		h.fail(ctx, w, "get reward supply failed", err)
		return
	}
	resp := toLedgerResponse(g)
	resp.RewardSupply = supply.String()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDeriveKey renders the key an identifier derives to.
func (h *Handler) HandleDeriveKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns := identity.Namespace(chi.URLParam(r, "namespace"))
	externalID := chi.URLParam(r, "externalID")

	key, err := h.service.DeriveAccountKey(ns, externalID)
	if err != nil {
		h.fail(ctx, w, "derive key failed", err, "namespace", string(ns))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toKeyResponse(ns, externalID, key))
}
