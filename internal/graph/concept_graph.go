package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
	"github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

// SyncRoadmapConceptGraph mirrors the roadmap's concepts and relations into
// neo4j. MERGE keeps re-syncs and duplicate relations idempotent. A nil
// client is a no-op so the pipeline works without a graph backend.
func SyncRoadmapConceptGraph(ctx context.Context, client *Client, log *logger.Logger, roadmapID uuid.UUID, concepts []*types.Concept, relations []*types.ConceptRelation) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if roadmapID == uuid.Nil {
		return fmt.Errorf("graph concept sync: missing roadmapID")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		topicID := ""
		if c.TopicID != nil && *c.TopicID != uuid.Nil {
			topicID = c.TopicID.String()
		}
		documentID := ""
		if c.DocumentID != nil && *c.DocumentID != uuid.Nil {
			documentID = c.DocumentID.String()
		}
		nodes = append(nodes, map[string]any{
			"id":          c.ID.String(),
			"name":        c.Name,
			"description": c.Description,
			"topic_id":    topicID,
			"document_id": documentID,
			"roadmap_id":  roadmapID.String(),
			"synced_at":   now,
		})
	}

	dependsOn := make([]map[string]any, 0, len(relations))
	nextStep := make([]map[string]any, 0, len(relations))
	relatedTo := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		if rel == nil || rel.FromConceptID == uuid.Nil || rel.ToConceptID == uuid.Nil {
			continue
		}
		rec := map[string]any{
			"from_id":    rel.FromConceptID.String(),
			"to_id":      rel.ToConceptID.String(),
			"roadmap_id": roadmapID.String(),
			"synced_at":  now,
		}
		switch rel.Type {
		case types.RelationDependsOn:
			dependsOn = append(dependsOn, rec)
		case types.RelationNextStep:
			nextStep = append(nextStep, rec)
		case types.RelationRelatedTo:
			relatedTo = append(relatedTo, rec)
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers (best-effort; may fail for restricted users).
	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id})
SET c += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		for relType, rels := range map[string][]map[string]any{
			"DEPENDS_ON": dependsOn,
			"NEXT_STEP":  nextStep,
			"RELATED_TO": relatedTo,
		} {
			if len(rels) == 0 {
				continue
			}
			res, err := tx.Run(ctx, fmt.Sprintf(`
UNWIND $rels AS r
MATCH (a:Concept {id: r.from_id})
MATCH (b:Concept {id: r.to_id})
MERGE (a)-[e:%s]->(b)
SET e.roadmap_id = r.roadmap_id,
    e.synced_at = r.synced_at
`, relType), map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}

type SuggestedConcept struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	RelationCount int64     `json:"relation_count"`
}

// SuggestRelatedConcepts traverses one hop out from the given concepts and
// returns neighbors that are not among them, ranked by how many of the given
// concepts they connect to.
func SuggestRelatedConcepts(ctx context.Context, client *Client, conceptIDs []uuid.UUID, limit int) ([]*SuggestedConcept, error) {
	if client == nil || client.Driver == nil {
		return []*SuggestedConcept{}, nil
	}
	if len(conceptIDs) == 0 {
		return []*SuggestedConcept{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ids := make([]string, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		if id != uuid.Nil {
			ids = append(ids, id.String())
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept)-[r:DEPENDS_ON|NEXT_STEP|RELATED_TO]-(other:Concept)
WHERE c.id IN $ids AND NOT other.id IN $ids
RETURN other.id AS id, other.name AS name, other.description AS description, COUNT(DISTINCT c) AS relation_count
ORDER BY relation_count DESC, name ASC
LIMIT $limit
`, map[string]any{"ids": ids, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	recs, _ := records.([]*neo4j.Record)
	out := make([]*SuggestedConcept, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		idStr, _ := rec.Get("id")
		name, _ := rec.Get("name")
		desc, _ := rec.Get("description")
		count, _ := rec.Get("relation_count")

		parsed, err := uuid.Parse(fmt.Sprint(idStr))
		if err != nil {
			continue
		}
		n, _ := count.(int64)
		description := ""
		if desc != nil {
			description = fmt.Sprint(desc)
		}
		out = append(out, &SuggestedConcept{
			ID:            parsed,
			Name:          fmt.Sprint(name),
			Description:   description,
			RelationCount: n,
		})
	}
	return out, nil
}
