package join

import "fmt"

// RelationID 关系在图中的稳定下标
type RelationID int

// InvalidRelation 无效的关系下标
const InvalidRelation RelationID = -1

// Relation 关系（基表或复合关系）
// 创建后不再修改；复合关系的标签是其组成关系标签的拼接
type Relation struct {
	Label       string
	Cardinality uint64
}

// Equal 标签和基数都相同时两个关系相等
func (r Relation) Equal(o Relation) bool {
	return r.Label == o.Label && r.Cardinality == o.Cardinality
}

// Less 按标签字典序比较
func (r Relation) Less(o Relation) bool {
	if r.Label != o.Label {
		return r.Label < o.Label
	}
	return r.Cardinality < o.Cardinality
}

// String 返回关系的字符串表示
func (r Relation) String() string {
	return fmt.Sprintf("%s(%d)", r.Label, r.Cardinality)
}

// Direction 边的方向
type Direction int

const (
	Undirected Direction = iota
	// Parent 边 (a,b) 上的 Parent 表示 a 是 b 的父节点
	Parent
	// Child 边 (a,b) 上的 Child 表示 a 是 b 的子节点
	Child
)

// Inverse 返回反向存储的边应携带的方向
func (d Direction) Inverse() Direction {
	switch d {
	case Parent:
		return Child
	case Child:
		return Parent
	default:
		return Undirected
	}
}

// String 返回方向字符串
func (d Direction) String() string {
	switch d {
	case Parent:
		return "parent"
	case Child:
		return "child"
	default:
		return "undirected"
	}
}

// ParseDirection 解析方向字符串，空串视为 undirected
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "undirected", "UNDIRECTED":
		return Undirected, nil
	case "parent", "PARENT":
		return Parent, nil
	case "child", "CHILD":
		return Child, nil
	default:
		return Undirected, fmt.Errorf("unknown join direction %q", s)
	}
}

// JoinEdge 两个关系之间的连接边
// Hidden 的边逻辑上已删除，但仍保留在邻接表中
type JoinEdge struct {
	Selectivity float64
	Direction   Direction
	Hidden      bool
}
