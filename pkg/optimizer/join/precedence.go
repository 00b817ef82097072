package join

// ToPrecedenceGraph 以 root 为根，把连接图的每条无向边改为远离根的方向
// 已经带方向的 Parent 边保持不变，但会沿着它继续遍历
func (g *JoinGraph) ToPrecedenceGraph(root RelationID) error {
	if !g.valid(root) {
		return g.unknown(root)
	}
	g.root = root

	visited := map[RelationID]bool{root: true}
	stack := []RelationID{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, x := range g.adj[n].order {
			e := g.adj[n].edges[x]
			if e.Hidden {
				continue
			}

			switch e.Direction {
			case Undirected:
				if visited[x] {
					return newError(ErrCodeCyclicGraph, g.Label(x), "join graph contains a cycle through %s", g.Label(n))
				}
				sel := e.Selectivity
				g.RemoveJoin(n, x)
				if err := g.AddJoin(n, x, sel, Parent); err != nil {
					return err
				}
			case Parent:
				if visited[x] {
					return newError(ErrCodeCyclicGraph, g.Label(x), "relation has more than one parent")
				}
			default:
				continue
			}

			visited[x] = true
			stack = append(stack, x)
			if len(visited) > len(g.relations) {
				return newError(ErrCodeGraphTooLarge, g.Label(root), "precedence walk exceeded %d relations", len(g.relations))
			}
		}
	}

	for _, id := range g.BaseRelations() {
		if visited[id] {
			continue
		}
		// 所有边都已隐藏的关系视为已删除
		if len(g.adj[id].order) > 0 && !g.visible(id) {
			continue
		}
		return newError(ErrCodeDisconnected, g.Label(id), "relation is not reachable from root %s", g.Label(root))
	}

	g.trace("[IKKBZ] precedence graph rooted at %s covers %d relations", g.Label(root), len(visited))
	return nil
}
