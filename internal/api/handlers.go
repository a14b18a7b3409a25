package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/folio/internal/folio"
	"github.com/starford/folio/internal/linkgraph"
	"github.com/starford/folio/internal/notebook"
	"github.com/starford/folio/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	app *folio.App
}

// NewHandler creates a new Handler.
func NewHandler(app *folio.App) *Handler {
	return &Handler{app: app}
}

// --- workspaces ---

// ListWorkspaces handles GET /api/workspaces.
//
//	@Summary	List registered workspaces
//	@Tags		workspaces
//	@Produce	json
//	@Success	200	{array}	models.Workspace
//	@Security	BearerAuth
//	@Router		/workspaces [get]
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, "list workspaces", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// RegisterWorkspace handles POST /api/workspaces.
//
//	@Summary	Register a folder as a workspace
//	@Tags		workspaces
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RegisterWorkspaceRequest	true	"Folder to register"
//	@Success	201		{object}	models.Workspace
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/workspaces [post]
func (h *Handler) RegisterWorkspace(w http.ResponseWriter, r *http.Request) {
	var req RegisterWorkspaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.app.RegisterWorkspace(r.Context(), req.FolderPath)
	if err != nil {
		writeError(w, "register workspace", err)
		return
	}
	if req.Activate {
		if ws, err = h.app.ActivateWorkspace(r.Context(), ws.ID); err != nil {
			writeError(w, "activate workspace", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, ws)
}

// ActivateWorkspace handles POST /api/workspaces/{id}/activate.
//
//	@Summary	Make a workspace the active one
//	@Tags		workspaces
//	@Produce	json
//	@Param		id	path		string	true	"Workspace ID"
//	@Success	200	{object}	models.Workspace
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/workspaces/{id}/activate [post]
func (h *Handler) ActivateWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.app.ActivateWorkspace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "activate workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// ScanWorkspace handles GET /api/workspaces/{id}/scan.
//
//	@Summary	Scan a workspace folder without touching the database
//	@Tags		workspaces
//	@Produce	json
//	@Param		id	path		string	true	"Workspace ID"
//	@Success	200	{object}	ScanResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/workspaces/{id}/scan [get]
func (h *Handler) ScanWorkspace(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.ScanWorkspace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "scan workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sync handles POST /api/sync.
//
//	@Summary	Reconcile a workspace with its folder
//	@Tags		workspaces
//	@Produce	json
//	@Param		workspace_id	query		string	false	"Workspace ID (defaults to the active one)"
//	@Success	200				{object}	models.SyncStats
//	@Failure	404				{object}	errResponse
//	@Security	BearerAuth
//	@Router		/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.SyncWorkspace(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Watch handles POST /api/workspaces/{id}/watch.
//
//	@Summary	Start watching a workspace folder
//	@Tags		workspaces
//	@Produce	json
//	@Param		id	path		string	true	"Workspace ID"
//	@Success	200	{object}	WatchResponse
//	@Security	BearerAuth
//	@Router		/workspaces/{id}/watch [post]
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	ws, err := h.app.WatchWorkspace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "watch workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, WatchResponse{WorkspaceID: ws.ID, Watching: true})
}

// Unwatch handles DELETE /api/workspaces/{id}/watch.
//
//	@Summary	Stop watching a workspace folder
//	@Tags		workspaces
//	@Param		id	path	string	true	"Workspace ID"
//	@Success	204
//	@Security	BearerAuth
//	@Router		/workspaces/{id}/watch [delete]
func (h *Handler) Unwatch(w http.ResponseWriter, r *http.Request) {
	if err := h.app.UnwatchWorkspace(chi.URLParam(r, "id")); err != nil {
		writeError(w, "unwatch workspace", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- notes ---

// CreateNote handles POST /api/notes.
//
//	@Summary	Create a new note file and record
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateNoteRequest	true	"Note to create"
//	@Success	201		{object}	NoteDetail
//	@Failure	400		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.app.CreateNote(r.Context(), noteservice.CreateInput(req))
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary	Get a note with its content and backlinks
//	@Tags		notes
//	@Produce	json
//	@Param		id	path		string	true	"Note ID"
//	@Success	200	{object}	NoteDetail
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.app.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary	Replace a note's content
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		id			path		string				true	"Note ID"
//	@Param		If-Match	header		string				false	"Expected content checksum"
//	@Param		body		body		UpdateNoteRequest	true	"New content"
//	@Success	200			{object}	NoteDetail
//	@Failure	404			{object}	errResponse
//	@Failure	409			{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	note, err := h.app.UpdateNoteContent(r.Context(), chi.URLParam(r, "id"), req.Content, ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary	Delete a note file and its record
//	@Tags		notes
//	@Param		id	path	string	true	"Note ID"
//	@Success	204
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles PUT /api/notes/{id}/path.
//
//	@Summary	Rename or move a note file
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"Note ID"
//	@Param		body	body		MoveNoteRequest	true	"New workspace-relative path"
//	@Success	200		{object}	NoteDetail
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id}/path [put]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.app.MoveNote(r.Context(), chi.URLParam(r, "id"), req.Path)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/notes/{id}/backlinks.
//
//	@Summary	List live notes linking to a note
//	@Tags		links
//	@Produce	json
//	@Param		id	path		string	true	"Note ID"
//	@Success	200	{object}	NoteRefsResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	refs, err := h.app.GetBacklinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteRefsResponse{Notes: refs})
}

// ForwardLinks handles GET /api/notes/{id}/forward-links.
//
//	@Summary	List live notes a note links to
//	@Tags		links
//	@Produce	json
//	@Param		id	path		string	true	"Note ID"
//	@Success	200	{object}	NoteRefsResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id}/forward-links [get]
func (h *Handler) ForwardLinks(w http.ResponseWriter, r *http.Request) {
	refs, err := h.app.GetForwardLinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "forward links", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteRefsResponse{Notes: refs})
}

// UpdateLinks handles PUT /api/notes/{id}/links.
//
//	@Summary	Re-derive a note's links from the given content
//	@Tags		links
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Note ID"
//	@Param		body	body		UpdateLinksRequest	true	"Content to extract links from"
//	@Success	200		{object}	LinksResult
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{id}/links [put]
func (h *Handler) UpdateLinks(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.app.UpdateNoteLinks(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, "update links", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Journal handles POST /api/journal.
//
//	@Summary	Append text to today's journal note
//	@Tags		notes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		JournalRequest	true	"Text to capture"
//	@Success	200		{object}	NoteDetail
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/journal [post]
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	note, err := h.app.CaptureJournal(r.Context(), req.WorkspaceID, req.Text)
	if err != nil {
		writeError(w, "journal capture", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Graph handles GET /api/graph.
//
//	@Summary	Get the link graph of a workspace
//	@Tags		links
//	@Produce	json
//	@Param		workspace_id	query		string	false	"Workspace ID (defaults to the active one)"
//	@Param		center			query		string	false	"Center note ID"
//	@Param		depth			query		int		false	"Hops around the center (default 1)"
//	@Param		include_orphans	query		bool	false	"Include notes without links"
//	@Success	200				{object}	GraphData
//	@Failure	400				{object}	errResponse
//	@Failure	404				{object}	errResponse
//	@Security	BearerAuth
//	@Router		/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	depth, err := queryInt(q, "depth", 1)
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	orphans, err := queryBool(q, "include_orphans", false)
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	data, err := h.app.GetGraphData(r.Context(), linkgraph.GraphQuery{
		WorkspaceID:    q.Get("workspace_id"),
		Center:         q.Get("center"),
		Depth:          depth,
		IncludeOrphans: orphans,
	})
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Tags handles GET /api/tags.
//
//	@Summary	List tags with the number of notes carrying them
//	@Tags		links
//	@Produce	json
//	@Param		workspace_id	query	string	false	"Workspace ID (defaults to the active one)"
//	@Success	200				{array}	models.TagCount
//	@Security	BearerAuth
//	@Router		/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.app.ListTags(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// --- notebooks ---

// ListNotebooks handles GET /api/notebooks.
//
//	@Summary	List notebooks of a workspace
//	@Tags		notebooks
//	@Produce	json
//	@Param		workspace_id	query	string	false	"Workspace ID"
//	@Success	200				{array}	models.Notebook
//	@Security	BearerAuth
//	@Router		/notebooks [get]
func (h *Handler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.ListNotebooks(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, "list notebooks", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateNotebook handles POST /api/notebooks.
//
//	@Summary	Create a notebook
//	@Tags		notebooks
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateNotebookRequest	true	"Notebook to create"
//	@Success	201		{object}	models.Notebook
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notebooks [post]
func (h *Handler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req CreateNotebookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	nb, err := h.app.CreateNotebook(r.Context(), notebook.CreateInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		WorkspaceID: req.WorkspaceID,
		FolderPath:  req.FolderPath,
	})
	if err != nil {
		writeError(w, "create notebook", err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

// MoveNotebook handles PUT /api/notebooks/{id}/parent.
//
//	@Summary	Move a notebook under a new parent
//	@Tags		notebooks
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Notebook ID"
//	@Param		body	body		MoveNotebookRequest	true	"New parent"
//	@Success	200		{object}	models.Notebook
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notebooks/{id}/parent [put]
func (h *Handler) MoveNotebook(w http.ResponseWriter, r *http.Request) {
	var req MoveNotebookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	nb, err := h.app.MoveNotebook(r.Context(), chi.URLParam(r, "id"), req.ParentID)
	if err != nil {
		writeError(w, "move notebook", err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// DeleteNotebook handles DELETE /api/notebooks/{id}.
//
//	@Summary	Delete a notebook, re-parenting its children
//	@Tags		notebooks
//	@Param		id	path	string	true	"Notebook ID"
//	@Success	204
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notebooks/{id} [delete]
func (h *Handler) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := h.app.DeleteNotebook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete notebook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotebookAncestors handles GET /api/notebooks/{id}/ancestors.
//
//	@Summary	List the parent chain of a notebook
//	@Tags		notebooks
//	@Produce	json
//	@Param		id	path		string	true	"Notebook ID"
//	@Success	200	{object}	AncestorsResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notebooks/{id}/ancestors [get]
func (h *Handler) NotebookAncestors(w http.ResponseWriter, r *http.Request) {
	ids, err := h.app.NotebookAncestors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "notebook ancestors", err)
		return
	}
	writeJSON(w, http.StatusOK, AncestorsResponse{AncestorIDs: ids})
}
