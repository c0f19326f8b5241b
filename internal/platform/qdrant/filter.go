package qdrant

import (
	"github.com/qdrant/go-client/qdrant"
)

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// workspaceFilter scopes every read and delete to one tenant.
func workspaceFilter(workspaceID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			matchKeyword(PayloadWorkspaceKey, workspaceID),
		},
	}
}

func sourceFilter(workspaceID, sourceReference string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			matchKeyword(PayloadWorkspaceKey, workspaceID),
			matchKeyword(PayloadSourceKey, sourceReference),
		},
	}
}
