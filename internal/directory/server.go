package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/x3dh"
)

const maxRequestBytes = 1 << 20

// Server is a development key directory. It checks uploaded bundles for a
// valid signed pre-key and hands out each one-time pre-key once.
type Server struct {
	backend Backend
	logger  *zap.Logger
	router  *mux.Router
}

func NewServer(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		logger:  logger.With(zap.Namespace("directory")),
		router:  mux.NewRouter(),
	}
	s.router.UseEncodedPath()
	s.router.Use(s.accessLog)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/keys/upload/{accountId}", s.handlePublish).Methods(http.MethodPost)
	s.router.HandleFunc("/keys/{accountId}", s.handleFetch).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	account, ok := accountVar(w, r)
	if !ok {
		return
	}

	var b domain.PublicKeyBundle
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode bundle: %v", err))
		return
	}
	if err := validateUpload(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.backend.Publish(r.Context(), account, b); err != nil {
		s.logger.Error("publish failed", zap.Stringer("account", account), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	s.logger.Info("bundle published",
		zap.Stringer("account", account),
		zap.Int("one_time_prekeys", len(b.OneTimePreKeys)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	account, ok := accountVar(w, r)
	if !ok {
		return
	}

	b, ok, err := s.backend.Fetch(r.Context(), account)
	if err != nil {
		s.logger.Error("fetch failed", zap.Stringer("account", account), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if b.OneTimePreKey == nil {
		s.logger.Warn("one-time pre-keys exhausted", zap.Stringer("account", account))
	}
	writeJSON(w, http.StatusOK, b)
}

// accountVar decodes the escaped account id from the route.
func accountVar(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	id, err := url.PathUnescape(mux.Vars(r)["accountId"])
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return "", false
	}
	return domain.AccountID(id), true
}

// validateUpload rejects bundles no initiator could use.
func validateUpload(b domain.PublicKeyBundle) error {
	if b.IdentityKey.IsZero() || b.SignedPreKey.PublicKey.IsZero() {
		return errors.New("identity_key and signed_prekey are required")
	}
	if !x3dh.VerifySignedPreKey(b.SigningKey, b.SignedPreKey) {
		return errors.New("signed_prekey signature does not verify")
	}
	seen := make(map[domain.OneTimePreKeyID]bool, len(b.OneTimePreKeys))
	for _, k := range b.OneTimePreKeys {
		if seen[k.KeyID] {
			return fmt.Errorf("duplicate one-time pre-key id %d", k.KeyID)
		}
		seen[k.KeyID] = true
	}
	return nil
}

// accessLog logs one line per request, tagged with the caller's request id.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
