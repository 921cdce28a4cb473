package http

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	companion "currency-companion"
	"currency-companion/widget"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

// Widget is the conversion state served by the Server
type Widget interface {
	SetBaseCurrency(code companion.Currency) error
	SetTargetCurrency(code companion.Currency) error
	SetAmount(raw string) bool
	State() widget.State
	Wait(ctx context.Context) error
}

// Server dependencies for HTTP Server functions
type Server struct {
	Widget Widget
	Logger log.Logger

	// SettleTimeout bounds how long a request waits for a rate fetch it triggered
	SettleTimeout time.Duration

	gatherer prometheus.Gatherer
	router   chi.Router
}

// NewServer serves w. Metrics are exposed from gatherer on /metrics when gatherer is not nil.
func NewServer(w Widget, gatherer prometheus.Gatherer, logger log.Logger) *Server {
	server := &Server{
		Widget:        w,
		Logger:        logger,
		SettleTimeout: 15 * time.Second,
		gatherer:      gatherer,
		router:        chi.NewRouter(),
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/", s.page())
	s.router.Post("/", s.submit())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/currencies", s.currencies())
		r.Get("/state", s.state())
		r.Put("/base", s.setBase())
		r.Put("/target", s.setTarget())
		r.Put("/amount", s.setAmount())
	})

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
		defer func(begin time.Time) {
			level.Debug(s.Logger).Log(
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(begin),
			)
		}(time.Now())
		next.ServeHTTP(ww, r)
	})
}

// settle waits for a fetch triggered by the request so the response shows its outcome.
func (s *Server) settle(r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.SettleTimeout)
	defer cancel()
	if err := s.Widget.Wait(ctx); err != nil {
		level.Warn(s.Logger).Log("msg", "responding before rates settled", "err", err)
	}
}

// stateResponse for marshalling the widget state to clients
type stateResponse struct {
	Base      companion.Currency `json:"base"`
	Target    companion.Currency `json:"target"`
	Amount    string             `json:"amount"`
	Converted string             `json:"converted"`
	Display   string             `json:"display"`
	Rates     companion.Rates    `json:"rates"`
	Error     string             `json:"error,omitempty"`
}

func newStateResponse(st widget.State) stateResponse {
	response := stateResponse{
		Base:      st.Base,
		Target:    st.Target,
		Amount:    st.Amount,
		Converted: st.Converted.StringFixed(2),
		Display:   st.Display(),
		Rates:     st.Rates,
	}
	if st.Err != nil {
		response.Error = widget.FetchErrorMessage
	}
	return response
}

func (s *Server) currencies() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.writeJSON(rw, http.StatusOK, companion.Currencies())
	}
}

func (s *Server) state() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.writeJSON(rw, http.StatusOK, newStateResponse(s.Widget.State()))
	}
}

func (s *Server) setBase() http.HandlerFunc {
	type request struct {
		Currency companion.Currency `json:"currency"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		var request request
		if !s.readJSON(rw, r, &request) {
			return
		}
		if err := s.Widget.SetBaseCurrency(request.Currency); err != nil {
			s.writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		s.settle(r)
		s.writeJSON(rw, http.StatusOK, newStateResponse(s.Widget.State()))
	}
}

func (s *Server) setTarget() http.HandlerFunc {
	type request struct {
		Currency companion.Currency `json:"currency"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		var request request
		if !s.readJSON(rw, r, &request) {
			return
		}
		if err := s.Widget.SetTargetCurrency(request.Currency); err != nil {
			s.writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(rw, http.StatusOK, newStateResponse(s.Widget.State()))
	}
}

// setAmount ignores amounts outside the numeric pattern and answers with the unchanged state.
func (s *Server) setAmount() http.HandlerFunc {
	type request struct {
		Amount string `json:"amount"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		var request request
		if !s.readJSON(rw, r, &request) {
			return
		}
		s.Widget.SetAmount(request.Amount)
		s.writeJSON(rw, http.StatusOK, newStateResponse(s.Widget.State()))
	}
}

// page renders the widget form
func (s *Server) page() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.render(rw, http.StatusOK, s.Widget.State())
	}
}

// submit applies a form post in field order base, target, amount, then redirects back to the page.
func (s *Server) submit() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(rw, "invalid form", http.StatusBadRequest)
			return
		}

		if base := r.PostForm.Get("base"); base != "" {
			if err := s.Widget.SetBaseCurrency(companion.Currency(base)); err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if target := r.PostForm.Get("target"); target != "" {
			if err := s.Widget.SetTargetCurrency(companion.Currency(target)); err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if _, ok := r.PostForm["amount"]; ok {
			s.Widget.SetAmount(r.PostForm.Get("amount"))
		}

		s.settle(r)
		http.Redirect(rw, r, "/", http.StatusSeeOther)
	}
}

type option struct {
	Code     companion.Currency
	Selected bool
}

type pageData struct {
	Title   string
	Base    []option
	Target  []option
	Amount  string
	BaseCCY companion.Currency
	Display string
	Failed  bool
}

func options(selected companion.Currency) []option {
	return lo.Map(companion.Currencies(), func(c companion.Currency, _ int) option {
		return option{Code: c, Selected: c == selected}
	})
}

func (s *Server) render(rw http.ResponseWriter, status int, st widget.State) {
	data := pageData{
		Title:   "CurrencyCompanion",
		Base:    options(st.Base),
		Target:  options(st.Target),
		Amount:  st.Amount,
		BaseCCY: st.Base,
		Display: st.Display(),
		Failed:  st.Err != nil,
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(status)
	if err := pageTemplate.Execute(rw, data); err != nil {
		level.Error(s.Logger).Log("msg", "rendering page", "err", err)
	}
}

func (s *Server) readJSON(rw http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(rw, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		level.Error(s.Logger).Log("msg", "failed json encoding", "err", err)
	}
}

func (s *Server) writeError(rw http.ResponseWriter, status int, msg string) {
	s.writeJSON(rw, status, map[string]string{"error": msg})
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<form method="post" action="/">
  <label for="base">Base Currency</label>
  <select id="base" name="base">{{range .Base}}
    <option value="{{.Code}}"{{if .Selected}} selected{{end}}>{{.Code}}</option>{{end}}
  </select>
  <label for="target">Target Currency</label>
  <select id="target" name="target">{{range .Target}}
    <option value="{{.Code}}"{{if .Selected}} selected{{end}}>{{.Code}}</option>{{end}}
  </select>
  <label for="amount">Amount in {{.BaseCCY}}</label>
  <input id="amount" name="amount" inputmode="decimal" value="{{.Amount}}">
  <button type="submit">Convert</button>
</form>
{{if .Failed}}<p class="error">{{.Display}}</p>{{else}}<p class="result">{{.Display}}</p>{{end}}
</body>
</html>
`))
