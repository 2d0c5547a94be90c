package controller

import (
	"errors"
	"net/http"
	"strconv"

	"climalog/internal/apperr"
	"climalog/internal/modules/firmware/service"
	"climalog/internal/utils"
)

func (c *firmwareControllerImpl) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := c.maxBytes + multipartOverhead
	if r.ContentLength > limit {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "firmware upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, "firmware upload too large")
			return
		}
		utils.WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("firmware")
	if err != nil {
		utils.WriteAppError(w, apperr.MissingField("firmware"))
		return
	}
	defer file.Close()

	fw, err := c.service.Upload(r.Context(), r.FormValue("version"), r.FormValue("description"), file)
	if errors.Is(err, service.ErrTooLarge) {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, fw)
}

func (c *firmwareControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := c.service.Latest(r.Context())
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *firmwareControllerImpl) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, http.StatusBadRequest, "invalid firmware id")
		return
	}
	path, err := c.service.DownloadPath(r.Context(), id)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	http.Redirect(w, r, path, http.StatusFound)
}
