package handlers

import (
	"fmt"
	"net/http"
	"path"
	"time"

	"promptqueue/internal/domain"
	"promptqueue/pkg/zip"
)

// ListArtifacts returns every stored artifact, oldest first.
func (a *App) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.Artifacts.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	items := make([]map[string]any, len(artifacts))
	for i, art := range artifacts {
		items[i] = map[string]any{
			"ref":        art.Ref,
			"bytes":      art.Size,
			"created_at": art.CreatedAt,
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// DownloadArchive bundles all stored artifacts into a single zip.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.Artifacts.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list artifacts")
		return
	}
	if len(artifacts) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no artifacts to archive")
		return
	}
	assets := make([]zip.Asset, 0, len(artifacts))
	for _, art := range artifacts {
		data, err := a.Artifacts.Read(r.Context(), art.Ref)
		if err != nil {
			a.Logger.Warn().Err(err).Str("ref", art.Ref).Msg("archive: skipping unreadable artifact")
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(art.Ref), Data: data})
	}
	archive := zip.ArchiveAssets(assets)
	if len(archive) == 0 {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	filename := fmt.Sprintf("artifacts-%s.zip", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// ClearArtifacts deletes every stored artifact and drops the done job records
// that pointed at them, so no record is left referencing a missing image.
func (a *App) ClearArtifacts(w http.ResponseWriter, r *http.Request) {
	removed, err := a.Artifacts.ClearAll(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to clear artifacts")
		return
	}
	dropped := a.JobStore.RemoveWhere(func(j domain.Job) bool {
		return j.Status == domain.JobStatusDone
	})
	a.Logger.Info().Int("artifacts", removed).Int("jobs", dropped).Msg("artifacts cleared")
	a.json(w, http.StatusOK, map[string]any{
		"artifacts_removed": removed,
		"jobs_removed":      dropped,
	})
}
