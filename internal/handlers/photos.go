package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// PhotoStore locates cached profile photos
type PhotoStore interface {
	PhotoPath(role, id string) string
}

type PhotoHandler struct {
	photos PhotoStore
}

func NewPhotoHandler(photos PhotoStore) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

var photoRoles = map[string]bool{"teachers": true, "students": true}

// GetPhoto
//
// @Summary		Get a cached profile photo
// @Description	Serve the local copy of a profile photo downloaded during a full sync
// @Tags			people
// @Produce		jpeg
// @Param			role	path		string	true	"Person kind"	Enums(teachers, students)
// @Param			id		path		string	true	"Person id"
// @Success		200
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		404	{object}	apiResponses.NotFoundError
// @Router			/photos/{role}/{id} [get]
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	role, id := r.PathValue("role"), r.PathValue("id")
	if !photoRoles[role] {
		gecho.BadRequest(w).WithMessage("Invalid role, expected 'teachers' or 'students'").Send()
		return
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		gecho.BadRequest(w).WithMessage("Invalid id").Send()
		return
	}

	f, err := os.Open(h.photos.PhotoPath(role, id))
	if errors.Is(err, fs.ErrNotExist) {
		gecho.NotFound(w).WithMessage("No cached photo").Send()
		return
	}
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, id+".jpg", stat.ModTime(), f)
}
