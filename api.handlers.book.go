package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	api.writeData(w, r, http.StatusOK, StatusResponse{
		RequestID: requestID,
		Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		Message:   "Hello. Books catalog api is available. Enjoy :)",
	})
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Registers a book then fetches its authors, publisher and published date by ISBN.
// @Tags         books
// @Accept       json
// @Produce      json
// @Success      201  {object}  IDResponse
// @Failure      415  {object}  APIError
// @Failure      422  {object}  APIError
// @Failure      500  {object}  APIError
// @Router       /books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	in, err := DecodeBookRequestBody(r)
	if err != nil {
		api.writeError(w, r, "failed to create the book", err)
		return
	}

	id, err := api.catalog.CreateBook(r.Context(), in)
	if err != nil {
		api.writeError(w, r, "failed to create the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.String("book.id", id))
	api.writeData(w, r, http.StatusCreated, IDResponse{ID: id})
}

// GetAllBooks godoc
// @Summary      List books
// @Description  Lists all books. Each query parameter filters on the book field of the same name.
// @Tags         books
// @Produce      json
// @Success      200  {array}   Book
// @Failure      500  {object}  APIError
// @Router       /books [get]
//
//nolint:bodyclose
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger := api.GetLoggerFromContext(r.Context())
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(api.longRequestDeadline()); err != nil {
		logger.Debug("http: failed to update the write deadline", zap.Error(err))
	}

	filter := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			filter[name] = values[0]
		}
	}

	books, err := api.catalog.ListBooks(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, "failed to get all books", err)
		return
	}
	logger.Info("success to get all books", zap.Int("books.count", len(books)))
	api.writeData(w, r, http.StatusOK, books)
}

// GetOneBook godoc
// @Summary      Get a book
// @Tags         books
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  Book
// @Failure      404  {object}  APIError
// @Router       /books/{id} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.writeError(w, r, "book id provided is not valid", ErrBookNotFound)
		return
	}
	book, err := api.catalog.GetBook(r.Context(), id)
	if err != nil {
		api.writeError(w, r, "failed to get the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to get book", zap.String("book.id", id))
	api.writeData(w, r, http.StatusOK, book)
}

// DeleteOneBook godoc
// @Summary      Delete a book
// @Description  Deletes the book and its ratings.
// @Tags         books
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  APIError
// @Router       /books/{id} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.writeError(w, r, "book id provided is not valid", ErrBookNotFound)
		return
	}
	if err := api.catalog.DeleteBook(r.Context(), id); err != nil {
		api.writeError(w, r, "failed to delete the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to delete book", zap.String("book.id", id))
	api.writeData(w, r, http.StatusOK, MessageResponse{ID: id, Message: "Book and its ratings deleted successfully"})
}

// UpdateBook godoc
// @Summary      Replace a book
// @Description  Replaces every field of the book. Its ratings keep the title given at creation.
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  APIError
// @Failure      415  {object}  APIError
// @Failure      422  {object}  APIError
// @Router       /books/{id} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.writeError(w, r, "book id provided is not valid", ErrBookNotFound)
		return
	}
	if _, err := api.catalog.GetBook(r.Context(), id); err != nil {
		api.writeError(w, r, "failed to update the book", err)
		return
	}

	in, err := DecodeBookRequestBody(r)
	if err != nil {
		api.writeError(w, r, "failed to update the book", err)
		return
	}

	if _, err = api.catalog.UpdateBook(r.Context(), id, in); err != nil {
		api.writeError(w, r, "failed to update the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to update book", zap.String("book.id", id))
	api.writeData(w, r, http.StatusOK, MessageResponse{ID: id, Message: "Book updated successfully"})
}

// longRequestDeadline is the write deadline applied to listing requests.
func (api *APIHandler) longRequestDeadline() time.Time {
	return api.clock.Now().Add(api.config.Server.LongRequestWriteTimeout)
}
