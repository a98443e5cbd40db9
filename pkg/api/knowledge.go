package api

import (
	"context"
	"net/http"

	"github.com/deepai/deepai-client/pkg/knowledge"
	"github.com/deepai/deepai-client/pkg/store"
)

var _ knowledge.API = (*Client)(nil)

func (c *Client) ListKnowledgeBases(ctx context.Context, bq knowledge.BaseQuery) ([]knowledge.Base, int, error) {
	q := pageQuery(bq.Page, bq.Limit)
	setIf(q, "term", bq.Term)
	setIf(q, "type", bq.Kind)

	p, err := get[page[knowledge.Base]](ctx, c, "/knowledge-base/get", q)
	if err != nil {
		return nil, 0, err
	}
	return p.unpack()
}

func (c *Client) CreateKnowledgeBase(ctx context.Context, b knowledge.Base) (knowledge.Base, error) {
	return post[knowledge.Base](ctx, c, "/knowledge-base/create", b)
}

func (c *Client) UpdateKnowledgeBase(ctx context.Context, id string, fields map[string]any) (knowledge.Base, error) {
	return post[knowledge.Base](ctx, c, "/knowledge-base/update", updatePayload{ID: id, Fields: fields})
}

func (c *Client) DeleteKnowledgeBase(ctx context.Context, id string, mode store.AiMode) error {
	_, err := post[none](ctx, c, "/knowledge-base/delete", map[string]any{"id": id, "ai_mode": modeOrLocal(mode)})
	return err
}

func (c *Client) UsePlugins(ctx context.Context, id string) ([]knowledge.Plugin, error) {
	return get[[]knowledge.Plugin](ctx, c, "/knowledge-base/get-use-plugins/"+id, nil)
}

func (c *Client) ListDocRecords(ctx context.Context, dq knowledge.DocQuery) ([]knowledge.DocRecord, int, error) {
	q := pageQuery(dq.Page, dq.Limit)
	q.Set("knowledge_base_id", dq.KnowledgeBaseID)
	setIf(q, "term", dq.Term)

	p, err := get[page[knowledge.DocRecord]](ctx, c, "/vector-doc-record/get", q)
	if err != nil {
		return nil, 0, err
	}
	return p.unpack()
}

func (c *Client) DeleteDocRecordByFilename(ctx context.Context, filename, knowledgeBaseID string, mode store.AiMode) error {
	_, err := post[none](ctx, c, "/vector-doc-record/delete-by-filename", map[string]any{
		"filename":          filename,
		"knowledge_base_id": knowledgeBaseID,
		"ai_mode":           modeOrLocal(mode),
	})
	return err
}

// AllPlugins returns the installed plugins and the ones available from registries.
func (c *Client) AllPlugins(ctx context.Context) (installed, registry []knowledge.Plugin, err error) {
	p, err := get[struct {
		Installed []knowledge.Plugin `json:"installed"`
		Registry  []knowledge.Plugin `json:"registry"`
	}](ctx, c, "/plugins/all", nil)
	if err != nil {
		return nil, nil, err
	}
	return p.Installed, p.Registry, nil
}

func (c *Client) ActivePlugins(ctx context.Context) ([]knowledge.Plugin, error) {
	return get[[]knowledge.Plugin](ctx, c, "/plugins/active", nil)
}

func (c *Client) DeletePlugin(ctx context.Context, id string) error {
	_, err := call[none](ctx, c, http.MethodDelete, "/plugins/"+id)
	return err
}

func (c *Client) TogglePlugin(ctx context.Context, id string) error {
	_, err := call[none](ctx, c, http.MethodPut, "/plugins/toggle/"+id)
	return err
}

func (c *Client) UploadRegistry(ctx context.Context, repoURL string) error {
	_, err := post[none](ctx, c, "/plugins/upload-registry", map[string]string{"url": repoURL})
	return err
}

func modeOrLocal(m store.AiMode) store.AiMode {
	if m == "" {
		return store.ModeLocalAI
	}
	return m
}
