package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"cfs-go/internal/cfs"
)

// uploadField is the multipart field carrying files. It may repeat.
const uploadField = "object"

func (s *Server) createDirectory(w http.ResponseWriter, r *http.Request) {
	info, err := s.resources.CreateDirectory(r.Context(), userFrom(r.Context()), pathParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) listDirectory(w http.ResponseWriter, r *http.Request) {
	infos, err := s.resources.ListDirectory(r.Context(), userFrom(r.Context()), pathParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) resourceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.resources.GetResourceInfo(r.Context(), userFrom(r.Context()), pathParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.resources.DeleteResource(r.Context(), userFrom(r.Context()), pathParam(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := s.resources.MoveOrRename(r.Context(), userFrom(r.Context()), q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// download streams a file, or a zip of a folder when the path names one.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	path := pathParam(r)

	dl, err := s.resources.DownloadFile(ctx, user, path)
	if errors.Is(err, cfs.ErrFileNotFound) {
		dl, err = s.resources.DownloadFolderZip(ctx, user, path)
		if errors.Is(err, cfs.ErrFolderNotFound) {
			err = fmt.Errorf("%w: %s", cfs.ErrFileNotFound, path)
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	// Names are limited to CleanPath's character set, so quoting is enough.
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Name+`"`)
	if dl.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		// Headers are gone; the client sees a truncated body.
		s.logger.Error("download interrupted", "path", path, "request_id", requestID(ctx), "error", err)
	}
}

// upload spools every part of the multipart body, then hands the batch to
// the engine so the collision check sees all files before any is stored.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mr, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}

	batch := s.spool.NewBatch()
	defer batch.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		_, err = batch.Stage(partFileName(part.Header.Get("Content-Disposition")), part)
		part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	uploads, err := batch.Uploads()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("reading spooled upload: %w", err))
		return
	}
	infos, err := s.resources.UploadFiles(ctx, userFrom(ctx), pathParam(r), uploads)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("upload spooled", "files", len(batch.Entries()), "bytes", batch.Size(), "spool_limit", s.spool.MaxSize())
	writeJSON(w, http.StatusCreated, infos)
}

// partFileName returns the raw filename parameter of a part. Unlike
// multipart.Part.FileName it keeps directory components, which carry the
// folder structure of a folder upload.
func partFileName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
