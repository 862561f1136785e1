package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// GetAllRatings godoc
// @Summary      List rating aggregates
// @Description  Lists every aggregate, or only the one of the book given by the `id` query parameter.
// @Tags         ratings
// @Produce      json
// @Param        id   query     string  false  "Book ID"
// @Success      200  {array}   RatingAggregate
// @Failure      404  {object}  APIError
// @Router       /ratings [get]
//
//nolint:bodyclose
func (api *APIHandler) GetAllRatings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if q.Has("id") {
		api.sendRating(w, r, q.Get("id"))
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(api.longRequestDeadline()); err != nil {
		logger.Debug("http: failed to update the write deadline", zap.Error(err))
	}
	ratings, err := api.catalog.ListRatings(r.Context())
	if err != nil {
		api.writeError(w, r, "failed to get all ratings", err)
		return
	}
	logger.Info("success to get all ratings", zap.Int("ratings.count", len(ratings)))
	api.writeData(w, r, http.StatusOK, ratings)
}

// GetOneRating godoc
// @Summary      Get a rating aggregate
// @Tags         ratings
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  RatingAggregate
// @Failure      404  {object}  APIError
// @Router       /ratings/{id} [get]
func (api *APIHandler) GetOneRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.sendRating(w, r, ps.ByName("id"))
}

func (api *APIHandler) sendRating(w http.ResponseWriter, r *http.Request, id string) {
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.writeError(w, r, "book id provided is not valid", ErrRatingNotFound)
		return
	}
	rating, err := api.catalog.GetRating(r.Context(), id)
	if err != nil {
		api.writeError(w, r, "failed to get the rating", err)
		return
	}
	api.writeData(w, r, http.StatusOK, rating)
}

// AddRatingValue godoc
// @Summary      Rate a book
// @Description  Appends a value between 1 and 5 to the book ratings and returns the new average.
// @Tags         ratings
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Book ID"
// @Success      200  {object}  AverageResponse
// @Failure      404  {object}  APIError
// @Failure      422  {object}  APIError
// @Router       /ratings/{id}/values [post]
func (api *APIHandler) AddRatingValue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.writeError(w, r, "book id provided is not valid", ErrRatingNotFound)
		return
	}
	if _, err := api.catalog.GetRating(r.Context(), id); err != nil {
		api.writeError(w, r, "failed to rate the book", err)
		return
	}

	value, err := DecodeRatingRequestBody(r)
	if err != nil {
		api.writeError(w, r, "failed to rate the book", err)
		return
	}

	average, err := api.catalog.SubmitRating(r.Context(), id, value)
	if err != nil {
		api.writeError(w, r, "failed to rate the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to rate book",
		zap.String("book.id", id),
		zap.Int("rating.value", value),
		zap.Float64("rating.average", average),
	)
	api.writeData(w, r, http.StatusOK, AverageResponse{Average: average})
}

// GetTopBooks godoc
// @Summary      Top rated books
// @Description  Books with at least 3 ratings having one of the 3 best averages. Ties at the cutoff are all included.
// @Tags         ratings
// @Produce      json
// @Success      200  {array}   TopBook
// @Failure      500  {object}  APIError
// @Router       /top [get]
func (api *APIHandler) GetTopBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	top, err := api.catalog.TopBooks(r.Context())
	if err != nil {
		api.writeError(w, r, "failed to compute top books", err)
		return
	}
	api.writeData(w, r, http.StatusOK, top)
}
