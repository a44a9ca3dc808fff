package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dbasik/dbasik/internal/extract"
	"github.com/dbasik/dbasik/internal/model"
	"github.com/dbasik/dbasik/internal/store"
	"github.com/dbasik/dbasik/internal/workbook"
)

const msgBadExtension = "Source file needs to have extension .xlsm."

// UploadResponse is returned when a workbook has been processed.
type UploadResponse struct {
	ReturnID string `json:"return_id"`
	Datamap  string `json:"datamap"`
	File     string `json:"file"`
	Mode     string `json:"mode"`
	Items    int    `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps lookup failures onto 404 and everything else onto 500.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	zap.L().Error("store error", zap.String("entity", what), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDatamaps(w http.ResponseWriter, r *http.Request) {
	dms, err := s.store.ListDatamaps(r.Context())
	if err != nil {
		writeStoreError(w, err, "datamap")
		return
	}
	if dms == nil {
		dms = []model.Datamap{}
	}
	writeJSON(w, http.StatusOK, dms)
}

func (s *Server) handleGetDatamap(w http.ResponseWriter, r *http.Request) {
	dm, err := store.FindDatamap(r.Context(), s.store, chi.URLParam(r, "datamap"))
	if err != nil {
		writeStoreError(w, err, "datamap")
		return
	}
	writeJSON(w, http.StatusOK, dm)
}

func (s *Server) handleListReturns(w http.ResponseWriter, r *http.Request) {
	filter := model.ReturnFilter{ProjectID: r.URL.Query().Get("project_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	returns, err := s.store.ListReturns(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "return")
		return
	}
	if returns == nil {
		returns = []model.Return{}
	}
	writeJSON(w, http.StatusOK, returns)
}

func (s *Server) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	ret, err := s.store.GetReturn(r.Context(), chi.URLParam(r, "returnID"))
	if err != nil {
		writeStoreError(w, err, "return")
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "returnID")
	if _, err := s.store.GetReturn(ctx, returnID); err != nil {
		writeStoreError(w, err, "return")
		return
	}
	items, err := s.store.ListReturnItems(ctx, returnID)
	if err != nil {
		writeStoreError(w, err, "return items")
		return
	}
	if items == nil {
		items = []model.ReturnItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleUpload takes a populated template for a return, extracts it with the
// chosen datamap and replaces the return's items.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnID := chi.URLParam(r, "returnID")

	limit := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("source_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "source_file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	if !workbook.HasAllowedExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, msgBadExtension)
		return
	}

	dmRef := strings.TrimSpace(r.FormValue("datamap"))
	if dmRef == "" {
		writeError(w, http.StatusBadRequest, "datamap is required")
		return
	}

	useTypes, err := parseCheckbox(r.FormValue("use_datamap_types"), s.useDatamapTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "use_datamap_types must be a boolean")
		return
	}

	ret, err := s.store.GetReturn(ctx, returnID)
	if err != nil {
		writeStoreError(w, err, "return")
		return
	}
	dm, err := store.FindDatamap(ctx, s.store, dmRef)
	if err != nil {
		writeStoreError(w, err, "datamap")
		return
	}

	path, err := s.saveUpload(ret.ID, header.Filename, file)
	if err != nil {
		zap.L().Error("save upload", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	mode := extract.ModeFor(useTypes)
	log := zap.L().With(
		zap.String("return_id", ret.ID),
		zap.String("datamap", dm.Name),
		zap.String("file", header.Filename),
	)
	records, err := extract.ProcessFile(ctx, path, dm, extract.Options{
		Mode:     mode,
		ReturnID: ret.ID,
		Filename: header.Filename,
		Logger:   log,
	}, s.store)
	if err != nil {
		if extract.IsTemplateError(err) {
			log.Warn("upload rejected", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("ERROR uploading file: %s. Please check that it is a valid template.", header.Filename))
			return
		}
		log.Error("upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		ReturnID: ret.ID,
		Datamap:  dm.Name,
		File:     header.Filename,
		Mode:     string(mode),
		Items:    len(records),
	})
}

// saveUpload copies an uploaded workbook into the return's upload directory.
func (s *Server) saveUpload(returnID, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.UploadDir, returnID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "server: create upload dir")
	}
	path := filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(filename))

	dst, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "server: create upload file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck
		return "", eris.Wrap(err, "server: write upload file")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "server: close upload file")
	}
	return path, nil
}

// parseCheckbox reads an HTML checkbox or boolean form value. Empty means def.
func parseCheckbox(v string, def bool) (bool, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return def, nil
	case "on":
		return true, nil
	}
	return strconv.ParseBool(v)
}
