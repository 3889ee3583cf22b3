package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	cartHandler *CartHandler,
	ordersHandler *OrdersHandler,
	checkoutHandler *CheckoutHandler,
	authHandler *AuthHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Post("/session/signin", authHandler.SignIn)
		r.Post("/session/signout", authHandler.SignOut)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productID}", cartHandler.UpdateQuantity)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
		})

		r.Get("/orders", ordersHandler.ListOrders)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetState)
			r.Post("/shipping", checkoutHandler.SubmitShipping)
			r.Post("/pay", checkoutHandler.Pay)
		})
	})

	return r
}
