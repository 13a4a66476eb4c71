package task

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chatopsdesk/chatopsdesk/pkg/cerr"
	"github.com/chatopsdesk/chatopsdesk/pkg/clog"
)

const maxRequestBody = 1 << 20

// Submitter schedules a created task for execution.
type Submitter interface {
	Submit(id string)
}

type Server struct {
	store     *Store
	submitter Submitter
}

func NewServer(store *Store, submitter Submitter) *Server {
	return &Server{
		store:     store,
		submitter: submitter,
	}
}

// Mount registers the task routes on r. Handlers report through cerr, so r
// must run cerr.NewConvertJSONErrorChiMiddleware.
func (s *Server) Mount(r chi.Router) {
	r.Get("/tasks", s.ListTasks)
	r.Get("/tasks/{id}", s.GetTask)
	r.Post("/tasks/chat", s.CreateChatTask)
	r.Post("/tasks/pr-to-main", s.CreatePRToMainTask)
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.store.List())
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := s.store.Get(id)
	if !ok {
		cerr.SetNewJSONError(r.Context(), cerr.NotFound, "task not found", nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), t)
}

type createChatRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) CreateChatTask(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	s.create(r, TypeChat, Payload{Prompt: req.Prompt})
}

type createPRToMainRequest struct {
	Head string `json:"head"`
	Base string `json:"base"`
}

func (s *Server) CreatePRToMainTask(w http.ResponseWriter, r *http.Request) {
	var req createPRToMainRequest
	if err := decodeBody(w, r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	head := strings.TrimSpace(req.Head)
	if head == "" {
		cerr.SetJSONError(r.Context(),
			cerr.NewError(cerr.InvalidArgument, "head is required", nil).
				AddFieldViolation("head", "value is required"))
		return
	}
	s.create(r, TypePRToMain, Payload{Head: head, Base: strings.TrimSpace(req.Base)})
}

func (s *Server) create(r *http.Request, taskType Type, payload Payload) {
	t := s.store.Create(taskType, payload)
	clog.AddAttributes(r.Context(), map[string]any{
		clog.TaskIDKey:   t.ID,
		clog.TaskTypeKey: string(t.Type),
	})
	s.submitter.Submit(t.ID)
	cerr.SetJSONResponse(r.Context(), t)
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return cerr.NewError(cerr.InvalidArgument, "invalid JSON body", err)
	}
	return nil
}
