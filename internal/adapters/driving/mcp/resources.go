package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "ragline://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge-bases",
		Name:        "knowledge-bases",
		Description: "Knowledge bases available for questions",
		MIMEType:    "application/json",
	}, s.handleKnowledgeBasesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "knowledge-bases/{knowledgeBaseId}/documents",
		Name:        "knowledge-base-documents",
		Description: "Documents ingested into a knowledge base",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

func (s *Server) handleKnowledgeBasesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.KnowledgeBases == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	kbs, err := s.ports.KnowledgeBases.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge bases: %w", err)
	}

	type kbInfo struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description,omitempty"`
		EmbeddingModel string `json:"embedding_model"`
		Documents      int    `json:"documents"`
	}

	infos := make([]kbInfo, len(kbs))
	for i := range kbs {
		infos[i] = kbInfo{
			ID:             kbs[i].ID,
			Name:           kbs[i].Name,
			Description:    kbs[i].Description,
			EmbeddingModel: kbs[i].EmbeddingModel,
			Documents:      kbs[i].TotalDocuments,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ingestion == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	kbID := extractKnowledgeBaseID(req.Params.URI)
	if kbID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Ingestion.ListDocuments(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		URI    string `json:"uri,omitempty"`
		Status string `json:"status"`
		Chunks int    `json:"chunks"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:     docs[i].ID,
			Name:   docs[i].Name,
			URI:    docs[i].URI,
			Status: string(docs[i].Status),
			Chunks: docs[i].ChunkCount,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractKnowledgeBaseID parses ragline://knowledge-bases/{id}/documents.
func extractKnowledgeBaseID(uri string) string {
	const prefix = uriScheme + "knowledge-bases/"
	const suffix = "/documents"

	if len(uri) <= len(prefix)+len(suffix) || !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
