package kg

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// ExportJSON 将图谱写为 JSON 文件，返回文件路径
func ExportJSON(graph *Graph, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, "knowledge_graph.json")

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write graph json: %w", err)
	}
	return path, nil
}

// ExportHTML 生成自包含的交互式图谱页面（vis-network），返回文件路径
func ExportHTML(graph *Graph, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, "knowledge_graph.html")

	type visNode struct {
		ID    string `json:"id"`
		Label string `json:"label"`
		Value int    `json:"value"`
		Group string `json:"group"`
	}
	type visEdge struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Label string `json:"label"`
		Value int    `json:"value"`
	}

	nodes := make([]visNode, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		group := e.Tier
		if e.IsCustom {
			group = "custom_" + e.Tier
		}
		nodes = append(nodes, visNode{ID: e.Name, Label: e.Name, Value: e.Frequency, Group: group})
	}
	edges := make([]visEdge, 0, len(graph.Relations))
	for _, r := range graph.Relations {
		edges = append(edges, visEdge{From: r.Source, To: r.Target, Label: r.Label, Value: r.Weight})
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return "", fmt.Errorf("encode edges: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create graph html: %w", err)
	}
	defer f.Close()

	err = graphPageTemplate.Execute(f, map[string]any{
		"Nodes": template.JS(nodesJSON),
		"Edges": template.JS(edgesJSON),
		"Stats": graph.Stats,
	})
	if err != nil {
		return "", fmt.Errorf("render graph html: %w", err)
	}
	return path, nil
}

var graphPageTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>知识图谱</title>
<script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
<style>
  body { margin: 0; font-family: sans-serif; }
  #stats { padding: 8px 16px; background: #f5f5f5; font-size: 14px; }
  #graph { width: 100vw; height: calc(100vh - 40px); }
</style>
</head>
<body>
<div id="stats">
  节点 {{.Stats.GraphNodes}} · 边 {{.Stats.GraphEdges}} ·
  关系类型 {{.Stats.RelationTypes}} · 平均度 {{printf "%.2f" .Stats.AvgDegree}}
</div>
<div id="graph"></div>
<script>
  const nodes = new vis.DataSet({{.Nodes}});
  const edges = new vis.DataSet({{.Edges}});
  const network = new vis.Network(
    document.getElementById("graph"),
    { nodes, edges },
    {
      nodes: { shape: "dot", scaling: { min: 8, max: 40 }, font: { size: 14 } },
      edges: { arrows: "to", font: { size: 10, align: "middle" }, smooth: { type: "continuous" } },
      physics: { stabilization: { iterations: 200 }, barnesHut: { gravitationalConstant: -8000 } }
    }
  );
</script>
</body>
</html>
`))
