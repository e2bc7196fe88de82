package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// newRouter builds the gorilla/mux route table from spec.md §6 and wraps
// it with an any-origin CORS policy restricted to the methods the
// surface actually uses.
func newRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/book", s.listBooks).Methods(http.MethodGet)
	r.HandleFunc("/book", s.createBook).Methods(http.MethodPost)
	r.HandleFunc("/book/{market}", s.readBook).Methods(http.MethodGet)
	r.HandleFunc("/book/{market}/order", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/book/{market}/order/{id}", s.readOrder).Methods(http.MethodGet)
	r.HandleFunc("/book/{market}/order/{id}", s.updateOrder).Methods(http.MethodPut)
	r.HandleFunc("/book/{market}/order/{id}", s.cancelOrder).Methods(http.MethodDelete)

	r.Use(loggingMiddleware)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	})

	return corsMiddleware.Handler(r)
}
