package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
)

// ErrUnsupported 查询中含有无法交给连接排序的结构
var ErrUnsupported = errors.New("unsupported query")

// TableRef FROM 子句中的一张表
type TableRef struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Alias  string `json:"alias,omitempty"`
}

// Label 返回表在连接图中的标签，有别名时使用别名
func (t TableRef) Label() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// QualifiedName 返回带 schema 的表名
func (t TableRef) QualifiedName() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// JoinPredicate 等值连接条件 Left.LeftColumn = Right.RightColumn
// Left 和 Right 为表标签
type JoinPredicate struct {
	Left        string `json:"left"`
	LeftColumn  string `json:"left_column"`
	Right       string `json:"right"`
	RightColumn string `json:"right_column"`
}

// String 返回条件的 SQL 形式
func (p JoinPredicate) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", p.Left, p.LeftColumn, p.Right, p.RightColumn)
}

// JoinQuery 从 SELECT 语句中提取出的连接图
type JoinQuery struct {
	Tables     []TableRef      `json:"tables"`
	Predicates []JoinPredicate `json:"predicates"`
}

// Table 按标签查找表，大小写不敏感
func (q *JoinQuery) Table(label string) (TableRef, bool) {
	for _, t := range q.Tables {
		if strings.EqualFold(t.Label(), label) {
			return t, true
		}
	}
	return TableRef{}, false
}

// PredicatePair 同一对表之间的全部连接条件
type PredicatePair struct {
	Left       string
	Right      string
	Predicates []JoinPredicate
}

// Pairs 按无序表对分组连接条件，Left 总是 FROM 中靠前的表
// 结果按每对表第一次出现的顺序排列
func (q *JoinQuery) Pairs() []PredicatePair {
	pos := make(map[string]int, len(q.Tables))
	for i, t := range q.Tables {
		pos[t.Label()] = i
	}

	index := make(map[[2]string]int)
	var pairs []PredicatePair
	for _, p := range q.Predicates {
		if pos[p.Left] > pos[p.Right] {
			p = JoinPredicate{Left: p.Right, LeftColumn: p.RightColumn, Right: p.Left, RightColumn: p.LeftColumn}
		}
		key := [2]string{p.Left, p.Right}
		i, ok := index[key]
		if !ok {
			i = len(pairs)
			index[key] = i
			pairs = append(pairs, PredicatePair{Left: p.Left, Right: p.Right})
		}
		pairs[i].Predicates = append(pairs[i].Predicates, p)
	}
	return pairs
}

// ExtractJoinGraph 解析单条 SELECT 语句并提取表和等值连接条件
// 只支持逗号连接、INNER JOIN 和 CROSS JOIN；外连接返回 ErrUnsupported
func ExtractJoinGraph(sql string) (*JoinQuery, error) {
	stmt, err := NewParser().ParseOneStmt(sql)
	if err != nil {
		return nil, err
	}

	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: only SELECT statements can be reordered", ErrUnsupported)
	}
	if sel.From == nil || sel.From.TableRefs == nil {
		return nil, fmt.Errorf("%w: SELECT without FROM", ErrUnsupported)
	}

	e := &extractor{query: &JoinQuery{}, labels: make(map[string]string)}
	if err := e.collectTables(sel.From.TableRefs); err != nil {
		return nil, err
	}
	if err := e.collectConditions(sel.From.TableRefs); err != nil {
		return nil, err
	}
	if sel.Where != nil {
		e.collectPredicates(sel.Where)
	}
	return e.query, nil
}

type extractor struct {
	query *JoinQuery
	// labels 小写标签 -> 原始标签
	labels map[string]string
}

// collectTables 按从左到右的顺序收集 FROM 中的表
func (e *extractor) collectTables(node ast.ResultSetNode) error {
	switch n := node.(type) {
	case nil:
		return nil
	case *ast.Join:
		if n.Tp == ast.LeftJoin || n.Tp == ast.RightJoin {
			return fmt.Errorf("%w: outer joins cannot be reordered", ErrUnsupported)
		}
		if n.NaturalJoin || len(n.Using) > 0 {
			return fmt.Errorf("%w: NATURAL JOIN and USING are not supported", ErrUnsupported)
		}
		if err := e.collectTables(n.Left); err != nil {
			return err
		}
		return e.collectTables(n.Right)
	case *ast.TableSource:
		name, ok := n.Source.(*ast.TableName)
		if !ok {
			return fmt.Errorf("%w: derived tables are not supported", ErrUnsupported)
		}
		ref := TableRef{Schema: name.Schema.O, Name: name.Name.O, Alias: n.AsName.O}
		key := strings.ToLower(ref.Label())
		if _, dup := e.labels[key]; dup {
			return fmt.Errorf("表 %s 重复出现，自连接需要指定别名", ref.Label())
		}
		e.labels[key] = ref.Label()
		e.query.Tables = append(e.query.Tables, ref)
		return nil
	default:
		return fmt.Errorf("%w: unexpected FROM item %T", ErrUnsupported, node)
	}
}

// collectConditions 收集 JOIN ... ON 中的连接条件
func (e *extractor) collectConditions(node ast.ResultSetNode) error {
	n, ok := node.(*ast.Join)
	if !ok {
		return nil
	}
	if err := e.collectConditions(n.Left); err != nil {
		return err
	}
	if err := e.collectConditions(n.Right); err != nil {
		return err
	}
	if n.On != nil && n.On.Expr != nil {
		e.collectPredicates(n.On.Expr)
	}
	return nil
}

// collectPredicates 按 AND 拆分条件，保留两侧分属不同表的列等值比较
func (e *extractor) collectPredicates(expr ast.ExprNode) {
	switch x := expr.(type) {
	case *ast.ParenthesesExpr:
		e.collectPredicates(x.Expr)
	case *ast.BinaryOperationExpr:
		switch x.Op {
		case opcode.LogicAnd:
			e.collectPredicates(x.L)
			e.collectPredicates(x.R)
		case opcode.EQ:
			l, lok := e.column(x.L)
			r, rok := e.column(x.R)
			if !lok || !rok || l[0] == r[0] {
				return
			}
			e.query.Predicates = append(e.query.Predicates, JoinPredicate{
				Left: l[0], LeftColumn: l[1], Right: r[0], RightColumn: r[1],
			})
		}
	}
}

// column 解析带表限定的列引用，返回 (表标签, 列名)
func (e *extractor) column(expr ast.ExprNode) ([2]string, bool) {
	if p, ok := expr.(*ast.ParenthesesExpr); ok {
		return e.column(p.Expr)
	}
	c, ok := expr.(*ast.ColumnNameExpr)
	if !ok || c.Name == nil || c.Name.Table.L == "" {
		return [2]string{}, false
	}
	label, ok := e.labels[c.Name.Table.L]
	if !ok {
		return [2]string{}, false
	}
	return [2]string{label, c.Name.Name.O}, true
}
