// Package bpor implements the Bounded Partial-Order Reduction tree and
// driver (§4.7): the systematic scheduler that replaces free exploration
// with a campaign of deterministically-selected schedule prefixes.
package bpor

import (
	"sort"

	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/dep"
)

// Node is one decision point in the explored portion of the schedule space.
// Todo/Sleep are keyed by thread because within one node's position in the
// tree a thread's next action is fixed by replay; the Lookahead a sleep
// entry was recorded against is kept alongside so later dependency checks
// (§4.7 grow) have something to test.
type Node struct {
	Todo         map[conc.ThreadID]bool
	Conservative map[conc.ThreadID]bool
	Done         map[conc.ThreadID]*Node
	Sleep        map[conc.ThreadID]conc.Lookahead

	// Preemptions is the preemption count of the prefix that reaches this
	// node (i.e. up to and including the decision that created it).
	Preemptions int
}

func newNode() *Node {
	return &Node{
		Todo:         make(map[conc.ThreadID]bool),
		Conservative: make(map[conc.ThreadID]bool),
		Done:         make(map[conc.ThreadID]*Node),
		Sleep:        make(map[conc.ThreadID]conc.Lookahead),
	}
}

// Tree is the whole explored schedule space, rooted before thread 0's first
// decision (§4.7, §5 "the BPOR tree is owned by the driver only").
type Tree struct {
	Root  *Node
	Bound int // preemption bound k (default 2)

	// SC marks whether the campaign runs under SequentialConsistency, so
	// findBacktrack can apply the SC same-ref-unsynchronised-access rule
	// (§4.6) instead of silently under-approximating it.
	SC bool

	// lastTrace is the most recently grown trace, kept so installTodo can
	// resolve a Candidate.Index (a position in that trace) back to a node
	// without threading node pointers through findBacktrack's return value.
	lastTrace conc.Trace
}

// NewTree builds an empty tree with preemption bound k, exploring under sc.
func NewTree(k int, sc bool) *Tree {
	return &Tree{Root: newNode(), Bound: k, SC: sc}
}

// Prefix is what next() hands the driver: the sequence of thread choices to
// force, replaying already-taken decisions and ending in exactly one fresh
// todo choice.
type Prefix struct {
	Decisions    []conc.ThreadID
	Conservative bool
}

// next extracts the longest prefix of already-taken decisions followed by
// one todo decision at the deepest available point, ties broken by maximum
// preemption count, deferring commit pseudo-threads to user threads (§4.7).
func (t *Tree) Next() (Prefix, bool) {
	var best Prefix
	var bestDepth = -1
	var bestPreempt = -1
	var bestIsCommit = true
	var walk func(n *Node, path []conc.ThreadID)
	walk = func(n *Node, path []conc.ThreadID) {
		for u := range n.Todo {
			depth := len(path) + 1
			preempt := n.Preemptions
			isCommit := u.IsCommit()
			better := depth > bestDepth
			if depth == bestDepth {
				if !isCommit && bestIsCommit {
					better = true
				} else if isCommit == bestIsCommit && preempt > bestPreempt {
					better = true
				}
			}
			if better {
				bestDepth = depth
				bestPreempt = preempt
				bestIsCommit = isCommit
				bestDecisions := make([]conc.ThreadID, len(path)+1)
				copy(bestDecisions, path)
				bestDecisions[len(path)] = u
				best = Prefix{Decisions: bestDecisions, Conservative: n.Conservative[u]}
			}
		}
		for u, child := range n.Done {
			walk(child, append(path, u))
		}
	}
	walk(t.Root, nil)
	if bestDepth < 0 {
		return Prefix{}, false
	}
	return best, true
}

// grow threads trace down the tree: descending into matching done children,
// creating fresh nodes where the trace diverges from what's already
// explored, and seeding each fresh node's sleep set from the parent's
// sleep ∪ taken, filtered by dependency with the action just taken (§4.7,
// resolving the open question about the exact filter: entries that become
// dependent with the taken action are dropped, everything else survives).
func (t *Tree) Grow(trace conc.Trace, sc bool, bufs dep.BufferState) {
	t.lastTrace = trace
	cur := t.Root
	for _, entry := range trace {
		u := entry.Action.Thread
		if child, ok := cur.Done[u]; ok {
			delete(cur.Todo, u)
			cur = child
			continue
		}
		// diverge: create the fresh subtree.
		delete(cur.Todo, u)
		delete(cur.Conservative, u)
		child := newNode()
		child.Preemptions = cur.Preemptions
		if entry.Preempted {
			child.Preemptions++
		}
		takenLA := actionLookahead(entry.Action)
		for sleeper, la := range cur.Sleep {
			if sleeper == u {
				continue
			}
			if dep.Dependent(sleeper, la, u, takenLA, sc, bufs) {
				continue
			}
			child.Sleep[sleeper] = la
		}
		cur.Done[u] = child
		cur.Sleep[u] = takenLA
		cur = child
	}
}

// actionLookahead reduces an already-executed ThreadAction to the Lookahead
// shape the dependency oracle expects, so grow/findBacktrack can reuse the
// same Simplify path for taken actions and previews alike (§4.6, last
// paragraph: "computable from lookahead ... using the same simplification").
func actionLookahead(a conc.ThreadAction) conc.Lookahead {
	return conc.Lookahead{Thread: a.Thread, Kind: a.Kind, Var: a.Var, Ref: a.Ref, Target: a.Target}
}

// Candidate is one backtracking point findBacktrack proposes.
type Candidate struct {
	Index        int // position in the trace / depth in the tree
	Thread       conc.ThreadID
	Conservative bool
}

// findBacktrack walks the trace looking for races: at each position i, for
// every thread u that was runnable but not chosen, search backward for the
// nearest earlier position j whose executed action is dependent with u's
// lookahead at i, and propose exploring u at j (§4.7).
//
// This uses "runnable-but-not-chosen at i" rather than the narrower
// "newly became runnable at i" the source text emphasises; the wider
// condition is a safe superset for soundness (P2) at the cost of proposing
// a few more candidates than strictly necessary — recorded as a deliberate
// simplification, not a correctness gap.
//
// The backward walk starts at i itself, since the action chosen there is
// the nearest one u's pending action can race with. It stops at u's own
// previous step, and at the first step where u was not runnable (not yet
// forked, or blocked): u cannot be forced at such a step, so a race that
// reaches back past it is not proposed.
//
// bufs is passed as nil: the only rule it feeds (barrier-vs-buffered-read)
// needs the live write-buffer state at each trace position, which isn't
// retained here, so that rule never fires during backtrack discovery. The
// SC same-ref-unsynchronised-access rule, which doesn't need bufs, still
// fires correctly via t.SC.
func (t *Tree) FindBacktrack(trace conc.Trace) []Candidate {
	return findBacktrack(trace, t.Bound, t.SC)
}

func findBacktrack(trace conc.Trace, bound int, sc bool) []Candidate {
	var out []Candidate
	for i, entry := range trace {
		chosen := entry.Action.Thread
		for _, la := range entry.Runnable {
			u := la.Thread
			if u == chosen {
				continue
			}
			for j := i; j >= 0; j-- {
				present := false
				for _, r := range trace[j].Runnable {
					present = present || r.Thread == u
				}
				if trace[j].Action.Thread == u || !present {
					break
				}
				if dep.Dependent(trace[j].Action.Thread, actionLookahead(trace[j].Action), u, la, sc, nil) {
					preempt := preemptionCountIfForced(trace, j, u)
					if preempt > bound {
						continue
					}
					out = append(out, Candidate{Index: j, Thread: u, Conservative: preempt == bound})
					break
				}
			}
		}
	}
	return out
}

// preemptionCountIfForced computes what the prefix's preemption count would
// be if, at position j, the scheduler forced thread u instead of whatever
// trace originally chose there (§4.7's preemption bound accounting).
func preemptionCountIfForced(trace conc.Trace, j int, u conc.ThreadID) int {
	count := 0
	for i := 0; i < j; i++ {
		if trace[i].Preempted {
			count++
		}
	}
	if j == 0 {
		return count
	}
	prev := trace[j-1].Action.Thread
	if prev == u {
		return count
	}
	for _, la := range trace[j].Runnable {
		if la.Thread == prev {
			return count + 1
		}
	}
	return count
}

// installTodo installs each candidate into tree[candidate.Index].todo,
// subject to §4.7's admission rules: sleep-set membership (unless
// conservative) and not already explored. The preemption bound is not
// checked here; FindBacktrack applies it when it proposes a candidate.
func (t *Tree) InstallTodo(candidates []Candidate) {
	for _, c := range candidates {
		node := t.nodeAt(c.Index)
		if node == nil {
			continue
		}
		if node.Done[c.Thread] != nil {
			continue
		}
		if _, asleep := node.Sleep[c.Thread]; asleep && !c.Conservative {
			continue
		}
		node.Todo[c.Thread] = true
		if c.Conservative {
			node.Conservative[c.Thread] = true
		}
	}
}

// nodeAt walks from the root to the given depth along the path the most
// recently grown trace took — valid because Candidate.Index always names a position already present in
// the tree from the trace that produced it via grow.
func (t *Tree) nodeAt(depth int) *Node {
	cur := t.Root
	// The root itself is depth 0's parent; candidate index i refers to the
	// node reached after i prior decisions, i.e. we descend along whichever
	// single Done chain grow() most recently built. Since installTodo is
	// always called right after grow() on the same trace, walk that trace's
	// prefix of Done edges.
	if t.lastTrace == nil || depth > len(t.lastTrace) {
		return nil
	}
	for i := 0; i < depth; i++ {
		u := t.lastTrace[i].Action.Thread
		child, ok := cur.Done[u]
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// pruneCommits clears todos at a node when every remaining todo there is a
// commit pseudo-thread and every explored child has done or todo entries
// of its own (§4.7). It does not check whether those children reached a
// barrier.
func (t *Tree) PruneCommits() {
	var walk func(n *Node)
	walk = func(n *Node) {
		allCommit := len(n.Todo) > 0
		for u := range n.Todo {
			if !u.IsCommit() {
				allCommit = false
				break
			}
		}
		if allCommit && len(n.Done) > 0 {
			allBarriered := true
			for _, child := range n.Done {
				if len(child.Done) == 0 && len(child.Todo) == 0 {
					allBarriered = false
					break
				}
			}
			if allBarriered {
				n.Todo = make(map[conc.ThreadID]bool)
				n.Conservative = make(map[conc.ThreadID]bool)
			}
		}
		for _, child := range n.Done {
			walk(child)
		}
	}
	walk(t.Root)
}

// sortedThreadIDs is a small helper kept for callers that want deterministic
// iteration over a thread-keyed set (map iteration order is not stable).
func sortedThreadIDs(m map[conc.ThreadID]bool) []conc.ThreadID {
	out := make([]conc.ThreadID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
