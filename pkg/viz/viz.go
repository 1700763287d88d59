// Package viz draws the change history of a replica document: one node per change, labelled with what the order
// looked like right after it.
package viz

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
	"github.com/astromechza/pizza-relay/pkg/replica"
)

// Label describes one change: short hash, actor@seq, the commit message and the order at that point.
func Label(change *automerge.Change, c pizza.Composition) string {
	return fmt.Sprintf(
		"%s %s@%d\n%s\n%d requests, %d slices",
		change.Hash().String()[:8], change.ActorID(), change.ActorSeq(), change.Message(), c.Requests, c.TotalSlices,
	)
}

// History returns one label per change in doc, in change order.
func History(doc *automerge.Doc) ([]*automerge.Change, []string, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to generate changes: %w", err)
	}
	labels := make([]string, len(changes))
	for i, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		reqs, err := replica.RequestsOf(docAt)
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to read requests at %s: %w", change.Hash(), err)
		}
		labels[i] = Label(change, pizza.Compose(reqs))
	}
	return changes, labels, nil
}

func RenderDocToSvg(doc *automerge.Doc, outputPath string) error {
	changes, labels, err := History(doc)
	if err != nil {
		return err
	}

	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return xerrors.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	nodeMap := make(map[string]*cgraph.Node)
	edgeCounter := 0
	for i, change := range changes {
		n, err := graph.CreateNode(change.Hash().String())
		if err != nil {
			return xerrors.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(labels[i])
		nodeMap[n.Name()] = n

		for _, hash := range change.Dependencies() {
			parent, ok := nodeMap[hash.String()]
			if !ok {
				continue
			}
			edgeCounter++
			if _, err := graph.CreateEdge(strconv.Itoa(edgeCounter), parent, n); err != nil {
				return xerrors.Errorf("failed to create edge: %w", err)
			}
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return xerrors.Errorf("failed to render: %w", err)
	}

	if err := os.WriteFile(outputPath, buff.Bytes(), 0o644); err != nil {
		return xerrors.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

func RenderToTemp(doc *automerge.Doc) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("pizza-%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderDocToSvg(doc, tf); err != nil {
		return "", err
	}
	return tf, nil
}
