package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SergeyKozhin/omnical/internal/model"
)

func (a *Api) syncHandler(w http.ResponseWriter, r *http.Request) {
	res, err := a.syncer.SyncAll(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSyncInProgress):
			a.conflictResponse(w, r, "sync already in progress")
		default:
			a.serverErrorResponse(w, r, fmt.Errorf("sync all: %w", err))
		}
		return
	}

	if err := a.writeJSON(w, http.StatusOK, res, nil); err != nil {
		a.serverErrorResponse(w, r, err)
	}
}
