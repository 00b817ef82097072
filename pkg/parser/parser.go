package parser

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// Parser SQL 解析器，封装 TiDB parser
// TiDB parser 不是并发安全的，每个 goroutine 使用自己的 Parser
type Parser struct {
	parser *parser.Parser
}

// NewParser 创建新的 SQL 解析器
func NewParser() *Parser {
	return &Parser{
		parser: parser.New(),
	}
}

// ParseSQL 解析 SQL 语句，返回 AST 节点列表
func (p *Parser) ParseSQL(sql string) ([]ast.StmtNode, error) {
	stmtNodes, _, err := p.parser.ParseSQL(sql)
	if err != nil {
		return nil, fmt.Errorf("解析 SQL 失败: %w", err)
	}
	return stmtNodes, nil
}

// ParseOneStmt 解析单条 SQL 语句
func (p *Parser) ParseOneStmt(sql string) (ast.StmtNode, error) {
	stmts, err := p.ParseSQL(sql)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("未解析到 SQL 语句")
	}
	if len(stmts) > 1 {
		return nil, fmt.Errorf("只支持单条 SQL 语句，实际为 %d 条", len(stmts))
	}
	return stmts[0], nil
}
