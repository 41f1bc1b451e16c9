package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/moasq/submint/internal/account"
	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/mint"
	"github.com/moasq/submint/internal/store"
	"github.com/moasq/submint/internal/subscription"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if s.accts == nil {
		unavailable(w)
		return
	}
	var c credentials
	if err := readJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := s.accts.SignUp(r.Context(), c.Email, c.Password, c.Name)
	if err != nil {
		s.authFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		UserID:       sess.User.ID,
		Email:        sess.User.Email,
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.accts == nil {
		unavailable(w)
		return
	}
	var c credentials
	if err := readJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := s.accts.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		s.authFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		UserID:       sess.User.ID,
		Email:        sess.User.Email,
	})
}

func (s *Server) authFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, account.ErrCredentials) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusUnauthorized, err.Error())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.accts == nil {
		unavailable(w)
		return
	}
	id, _ := IdentityFrom(r.Context())
	u, err := s.accts.Profile(r.Context(), id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "error loading profile", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleWalletReset(w http.ResponseWriter, r *http.Request) {
	if s.wallet == nil {
		unavailable(w)
		return
	}
	id, _ := IdentityFrom(r.Context())
	wlt, err := s.wallet.Reset(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, r, "error resetting wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"walletAddress": wlt.Address().String()})
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	id, _ := IdentityFrom(r.Context())
	subs, err := s.subs.Subscriptions(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, r, "error loading subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	var f subscription.Form
	if err := readJSON(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := IdentityFrom(r.Context())
	out, err := s.subs.Create(r.Context(), id.UserID, f)
	switch {
	case errors.Is(err, subscription.ErrDatesRequired),
		errors.Is(err, subscription.ErrEndBeforeStart),
		errors.Is(err, subscription.ErrTitleRequired),
		errors.Is(err, subscription.ErrImage),
		errors.Is(err, subscription.ErrImageTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mint.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, mint.ErrInsufficientFunds.Error())
	case err != nil:
		s.internalError(w, r, "error creating subscription", err)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	id, _ := IdentityFrom(r.Context())
	subs, err := s.subs.Subscriptions(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, r, "error loading subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, advisor.Stats(subs))
}

func (s *Server) handleListPaymentUsers(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	id, _ := IdentityFrom(r.Context())
	users, err := s.subs.ListSharedUsers(r.Context(), id.UserID)
	if err != nil {
		s.internalError(w, r, "error fetching users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAddPaymentUser(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	var in subscription.SharedUserInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, _ := IdentityFrom(r.Context())
	u, err := s.subs.AddSharedUser(r.Context(), id.UserID, in)
	if errors.Is(err, subscription.ErrNameRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "error adding user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleSyncPaymentUsers(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	var req struct {
		MetadataURI string `json:"metadataUri"`
	}
	if err := readJSON(r, &req); err != nil || req.MetadataURI == "" {
		writeError(w, http.StatusBadRequest, "metadataUri is required")
		return
	}
	id, _ := IdentityFrom(r.Context())
	users, err := s.subs.SyncSharedUsers(r.Context(), id.UserID, req.MetadataURI)
	if err != nil {
		s.internalError(w, r, "error syncing shared users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// periodQuery reads year and month, defaulting to the current month.
func periodQuery(r *http.Request) (subscription.Period, error) {
	p := subscription.PeriodOf(time.Now())
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return p, err
		}
		p.Year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return p, err
		}
		p.Month = time.Month(m)
	}
	if !p.Valid() {
		return p, errors.New("invalid period")
	}
	return p, nil
}

func (s *Server) handleMonthlyPayments(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	uri := r.URL.Query().Get("metadataUri")
	if uri == "" {
		writeError(w, http.StatusBadRequest, "metadataUri is required")
		return
	}
	p, err := periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}
	id, _ := IdentityFrom(r.Context())
	rows, err := s.subs.MonthlyStatus(r.Context(), id.UserID, uri, p)
	if err != nil {
		s.internalError(w, r, "error fetching payments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": p.String(), "payments": rows})
}

func (s *Server) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	var upd subscription.PaymentUpdate
	if err := readJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if upd.UserID == "" || !(subscription.Period{Year: upd.Year, Month: time.Month(upd.Month)}).Valid() {
		writeError(w, http.StatusBadRequest, "userId, year and month are required")
		return
	}
	id, _ := IdentityFrom(r.Context())
	rec, err := s.subs.SetPayment(r.Context(), id.UserID, upd)
	switch {
	case errors.Is(err, subscription.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Payment user not found")
		return
	case err != nil:
		s.internalError(w, r, "error updating payment status", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		unavailable(w)
		return
	}
	q := r.URL.Query()
	uri := q.Get("metadataUri")
	if uri == "" {
		writeError(w, http.StatusBadRequest, "metadataUri is required")
		return
	}
	p, err := periodQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}
	id, _ := IdentityFrom(r.Context())
	ledger, err := s.subs.Ledger(r.Context(), id.UserID, uri)
	if err != nil {
		s.internalError(w, r, "error fetching payments", err)
		return
	}
	if q.Get("month") != "" {
		writeJSON(w, http.StatusOK, ledger.PaymentsByYearAndMonth(p))
		return
	}
	writeJSON(w, http.StatusOK, ledger.PaymentsByYear(p.Year))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.ErrorContext(r.Context(), msg, "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
