package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kasuganosora/joinorder/pkg/optimizer/join"
	"gopkg.in/yaml.v3"
)

// RelationSpec describes a base relation of a query
type RelationSpec struct {
	Label       string `json:"label" yaml:"label"`
	Cardinality uint64 `json:"cardinality" yaml:"cardinality"`
}

// JoinSpec describes a join predicate between two relations
type JoinSpec struct {
	Left        string  `json:"left" yaml:"left"`
	Right       string  `json:"right" yaml:"right"`
	Selectivity float64 `json:"selectivity" yaml:"selectivity"`
	Direction   string  `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Query is the input of the optimizer: relations in clause order and their joins
type Query struct {
	Relations []RelationSpec `json:"relations" yaml:"relations"`
	Joins     []JoinSpec     `json:"joins" yaml:"joins"`
	// Root is optional; when empty the optimizer picks one
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
}

// Validate checks the query for structural errors
func (q *Query) Validate() error {
	if q == nil || len(q.Relations) == 0 {
		return NewError(ErrCodeInvalidQuery, "query has no relations", nil)
	}

	seen := make(map[string]bool, len(q.Relations))
	for i, r := range q.Relations {
		if strings.TrimSpace(r.Label) == "" {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("relation #%d has no label", i+1), nil)
		}
		if seen[r.Label] {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("relation %s is declared twice", r.Label), nil)
		}
		seen[r.Label] = true
	}

	for _, j := range q.Joins {
		if !seen[j.Left] || !seen[j.Right] {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("join %s-%s references an unknown relation", j.Left, j.Right), nil)
		}
		if j.Left == j.Right {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("relation %s cannot join itself", j.Left), nil)
		}
		if j.Selectivity <= 0 || j.Selectivity > 1 {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("join %s-%s selectivity %v is not in (0, 1]", j.Left, j.Right, j.Selectivity), nil)
		}
		if _, err := join.ParseDirection(j.Direction); err != nil {
			return NewError(ErrCodeInvalidQuery, fmt.Sprintf("join %s-%s", j.Left, j.Right), err)
		}
	}

	if q.Root != "" && !seen[q.Root] {
		return NewError(ErrCodeRootNotFound, fmt.Sprintf("root %s is not a relation of the query", q.Root), nil)
	}
	return nil
}

// Graph builds the join graph of a validated query
func (q *Query) Graph(opts ...join.Option) (*join.JoinGraph, error) {
	g := join.NewJoinGraph(opts...)
	ids := make(map[string]join.RelationID, len(q.Relations))
	for _, r := range q.Relations {
		id, err := g.AddRelation(r.Label, r.Cardinality)
		if err != nil {
			return nil, WrapError(err, ErrCodeInvalidQuery, "failed to add relation "+r.Label)
		}
		ids[r.Label] = id
	}
	for _, j := range q.Joins {
		dir, err := join.ParseDirection(j.Direction)
		if err != nil {
			return nil, WrapError(err, ErrCodeInvalidQuery, "invalid join direction")
		}
		if err := g.AddJoin(ids[j.Left], ids[j.Right], j.Selectivity, dir); err != nil {
			return nil, WrapError(err, ErrCodeInvalidQuery, fmt.Sprintf("failed to add join %s-%s", j.Left, j.Right))
		}
	}
	return g, nil
}

// ClauseOrder returns the relation labels in declaration order
func (q *Query) ClauseOrder() []string {
	labels := make([]string, len(q.Relations))
	for i, r := range q.Relations {
		labels[i] = r.Label
	}
	return labels
}

// canonical encodes the query for plan cache fingerprints
func (q *Query) canonical() []string {
	parts := make([]string, 0, 1+len(q.Relations)+len(q.Joins))
	parts = append(parts, fields("root", q.Root))
	for _, r := range q.Relations {
		parts = append(parts, fields("r", r.Label, strconv.FormatUint(r.Cardinality, 10)))
	}
	for _, j := range q.Joins {
		dir, _ := join.ParseDirection(j.Direction)
		parts = append(parts, fields("j", j.Left, j.Right, strconv.FormatFloat(j.Selectivity, 'g', -1, 64), dir.String()))
	}
	return parts
}

// fields joins values with length prefixes so labels containing ':' stay unambiguous
func fields(values ...string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(strconv.Itoa(len(v)))
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	return sb.String()
}

// LoadQuery reads a query from a .json, .yaml or .yml file
func LoadQuery(path string) (*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError(ErrCodeInvalidQuery, "failed to read query file "+path, err)
	}
	return DecodeQuery(data, filepath.Ext(path))
}

// DecodeQuery decodes a query; format is a file extension or "json"/"yaml"
func DecodeQuery(data []byte, format string) (*Query, error) {
	var q Query
	var err error
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &q)
	default:
		err = json.Unmarshal(data, &q)
	}
	if err != nil {
		return nil, NewError(ErrCodeInvalidQuery, "failed to decode query", err)
	}
	return &q, nil
}
