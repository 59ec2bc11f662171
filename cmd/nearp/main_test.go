package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nearp/internal/opt"
)

const tiny = `Name:		tiny
Optimal value:	11
#Vehicles:	-1
Capacity:	10
Depot Node:	1
#Nodes:		3
#Edges:		2
#Arcs:		0
#Required N:	1
#Required E:	1
#Required A:	0

ReN.	DEMAND	S. COST
N3	1	1

ReE.	From N.	To N.	T. COST	DEMAND	S. COST
E1	1	2	2	2	2

EDGE	FROM N.	TO N.	T. COST
NrE1	2	3	3

END
`

func TestPromptNames(t *testing.T) {
	var out bytes.Buffer
	names := promptNames(strings.NewReader("a.dat\n  b.dat \n\nc.dat\n"), &out)
	assert.Equal(t, []string{"a.dat", "b.dat"}, names)
	assert.Equal(t, 3, strings.Count(out.String(), "instance"))

	assert.Empty(t, promptNames(strings.NewReader(""), &out))
}

func TestSolveInstanceWritesFiles(t *testing.T) {
	root := t.TempDir()
	o := options{
		instances:  filepath.Join(root, "in"),
		solutions:  filepath.Join(root, "out"),
		statistics: filepath.Join(root, "stats"),
		solver:     opt.DefaultConfig(),
	}
	o.solver.Seed = 3
	o.solver.Iterations = 10
	require.NoError(t, os.MkdirAll(o.instances, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(o.instances, "tiny.dat"), []byte(tiny), 0o644))

	require.NoError(t, solveInstance(context.Background(), o, "tiny.dat", zap.NewNop()))

	sol, err := os.ReadFile(filepath.Join(o.solutions, "sol-tiny.dat"))
	require.NoError(t, err)
	lines := strings.Split(string(sol), "\n")
	assert.Equal(t, "11", lines[0])
	assert.Equal(t, "1", lines[1])

	raw, err := os.ReadFile(filepath.Join(o.statistics, "stats-tiny.json"))
	require.NoError(t, err)
	var doc struct {
		Statistics struct {
			Name     string `json:"name"`
			Vertices int    `json:"vertices"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "tiny", doc.Statistics.Name)
	assert.Equal(t, 3, doc.Statistics.Vertices)
}

func TestSolveInstanceInSubdirectory(t *testing.T) {
	root := t.TempDir()
	o := options{
		instances:  filepath.Join(root, "in"),
		solutions:  filepath.Join(root, "out"),
		statistics: filepath.Join(root, "stats"),
		solver:     opt.DefaultConfig(),
	}
	o.solver.Seed = 3
	o.solver.Iterations = 5
	require.NoError(t, os.MkdirAll(filepath.Join(o.instances, "gdb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(o.instances, "gdb", "tiny.dat"), []byte(tiny), 0o644))

	require.NoError(t, solveInstance(context.Background(), o, filepath.Join("gdb", "tiny.dat"), zap.NewNop()))

	assert.FileExists(t, filepath.Join(o.solutions, "sol-tiny.dat"))
	assert.NoDirExists(t, filepath.Join(o.solutions, "sol-gdb"))
}

func TestSolveInstanceMissingFile(t *testing.T) {
	o := options{instances: t.TempDir(), solver: opt.DefaultConfig()}
	assert.ErrorIs(t, solveInstance(context.Background(), o, "absent.dat", zap.NewNop()), os.ErrNotExist)
}
