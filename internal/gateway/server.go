package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	activityapp "github.com/dwikikusuma/storefront/internal/activity/app"
	activitydomain "github.com/dwikikusuma/storefront/internal/activity/domain"
	cartapp "github.com/dwikikusuma/storefront/internal/cart/app"
	cartdomain "github.com/dwikikusuma/storefront/internal/cart/domain"
	catalogapp "github.com/dwikikusuma/storefront/internal/catalog/app"
	catalogdomain "github.com/dwikikusuma/storefront/internal/catalog/domain"
	checkoutapp "github.com/dwikikusuma/storefront/internal/checkout/app"
)

// cartProduct projects a catalog product into the shape the cart engine
// snapshots at add-time.
func cartProduct(p catalogdomain.Product) cartdomain.Product {
	return cartdomain.Product{
		ID:          p.ID,
		Title:       p.Title,
		Image:       p.Image,
		Description: p.Description,
		UnitPrice:   p.Price,
	}
}

// Server is the JSON facade over the storefront services. It is view
// plumbing: every handler delegates straight to an app service.
type Server struct {
	log      *slog.Logger
	engine   *cartapp.Engine
	catalog  *catalogapp.Service
	activity *activityapp.Recorder
	checkout *checkoutapp.Service
	sessions *SessionHub
}

func NewServer(
	log *slog.Logger,
	engine *cartapp.Engine,
	catalog *catalogapp.Service,
	activity *activityapp.Recorder,
	checkout *checkoutapp.Service,
	sessions *SessionHub,
) *Server {
	return &Server{
		log:      log,
		engine:   engine,
		catalog:  catalog,
		activity: activity,
		checkout: checkout,
		sessions: sessions,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)

	mux.HandleFunc("GET /api/cart", s.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", s.handleAddItem)
	mux.HandleFunc("POST /api/cart/items/{id}/increment", s.handleIncrement)
	mux.HandleFunc("POST /api/cart/items/{id}/decrement", s.handleDecrement)
	mux.HandleFunc("DELETE /api/cart/items/{id}", s.handleRemoveItem)
	mux.HandleFunc("POST /api/cart/clear", s.handleClearCart)
	mux.HandleFunc("POST /api/cart/resync", s.handleResync)

	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/checkout/quote", s.handleQuote)

	return mux
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, catalogapp.ErrInvalidInput)
		return
	}
	s.sessions.SignIn(req.UserID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sessions.SignOut()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalogapp.Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	sel := catalogapp.SortSelection{
		Key:   catalogapp.SortKey(q.Get("sort")),
		Order: catalogapp.SortOrder(q.Get("order")),
	}
	if sel.Key != catalogapp.SortNone && sel.Order == "" {
		sel.Order = catalogapp.OrderAsc
	}

	products, err := s.catalog.ListProducts(r.Context(), filter, sel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	// Viewing details is an activity event when someone is signed in.
	if userID := s.engine.CurrentUser(); userID != cartapp.Anonymous {
		if _, err := s.activity.Record(r.Context(), userID, activitydomain.Item{
			ProductID:   p.ID,
			Title:       p.Title,
			Image:       p.Image,
			Description: p.Description,
			Price:       p.Price,
		}, activitydomain.ActionViewedDetails); err != nil {
			s.log.Warn("recording view failed", slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, catalogapp.ErrInvalidInput)
		return
	}

	p, err := s.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.AddItem(cartProduct(p)); err != nil {
		writeError(w, err)
		return
	}

	if userID := s.engine.CurrentUser(); userID != cartapp.Anonymous {
		if _, err := s.activity.Record(r.Context(), userID, activitydomain.Item{
			ProductID:   p.ID,
			Title:       p.Title,
			Image:       p.Image,
			Description: p.Description,
			Price:       p.Price,
		}, activitydomain.ActionAddedToCart); err != nil {
			s.log.Warn("recording add failed", slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.IncrementLine(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleDecrement(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DecrementLine(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveLine(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Resync(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cartView())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	order := activityapp.SortOrder(r.URL.Query().Get("order"))
	if order == "" {
		order = activityapp.OrderDesc
	}

	events, err := s.activity.History(r.Context(), s.engine.CurrentUser(), order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.checkout.Quote(s.engine.Lines())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type cartLineView struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type cartViewBody struct {
	Items      []cartLineView `json:"items"`
	ItemCount  int            `json:"item_count"`
	Total      string         `json:"total"`
	SyncStatus string         `json:"sync_status"`
	SyncError  string         `json:"sync_error,omitempty"`
}

func (s *Server) cartView() cartViewBody {
	lines := s.engine.Lines()
	body := cartViewBody{
		Items:      make([]cartLineView, 0, len(lines)),
		ItemCount:  lines.ItemCount(),
		Total:      lines.Total().StringFixed(2),
		SyncStatus: string(s.engine.Status()),
	}
	for _, l := range lines {
		body.Items = append(body.Items, cartLineView{
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	if err := s.engine.LastError(); err != nil {
		body.SyncError = err.Error()
	}
	return body
}
