package github

import (
	"encoding/json"
	"fmt"
	"strings"
)

// planMode selects how batch items are grouped into aliases.
type planMode int

const (
	// planRepos aliases each distinct repository: r{i}.
	planRepos planMode = iota
	// planFiles aliases files under their repository: r{i}.f{n}, n the input index.
	planFiles
	// planFilesByRef groups files by ref inside each repository:
	// r{i}.ref{j}.f{k}, k indexed within the ref group.
	planFilesByRef
)

// batchItem is one input of a batched query.
type batchItem struct {
	owner string
	repo  string
	ref   string
	path  string
}

type fileSlot struct {
	alias string
	ref   string
	path  string
}

type refGroup struct {
	alias string
	ref   string
	files []fileSlot
}

type repoGroup struct {
	alias string
	owner string
	repo  string
	files []fileSlot
	refs  []*refGroup
}

// batchPlan is the alias layout of one batched query. Groups keep the
// order in which their first item appeared.
type batchPlan struct {
	repos []*repoGroup
	// paths holds, per input index, the aliases leading to its node.
	paths [][]string
}

func planBatch(items []batchItem, mode planMode) *batchPlan {
	p := &batchPlan{paths: make([][]string, len(items))}
	byRepo := make(map[string]*repoGroup)

	for i, it := range items {
		key := it.owner + "/" + it.repo
		g, ok := byRepo[key]
		if !ok {
			g = &repoGroup{alias: fmt.Sprintf("r%d", len(p.repos)), owner: it.owner, repo: it.repo}
			byRepo[key] = g
			p.repos = append(p.repos, g)
		}

		switch mode {
		case planRepos:
			p.paths[i] = []string{g.alias}

		case planFiles:
			slot := fileSlot{alias: fmt.Sprintf("f%d", i), ref: it.ref, path: it.path}
			g.files = append(g.files, slot)
			p.paths[i] = []string{g.alias, slot.alias}

		case planFilesByRef:
			var rg *refGroup
			for _, candidate := range g.refs {
				if candidate.ref == it.ref {
					rg = candidate
					break
				}
			}
			if rg == nil {
				rg = &refGroup{alias: fmt.Sprintf("ref%d", len(g.refs)), ref: it.ref}
				g.refs = append(g.refs, rg)
			}
			slot := fileSlot{alias: fmt.Sprintf("f%d", len(rg.files)), ref: it.ref, path: it.path}
			rg.files = append(rg.files, slot)
			p.paths[i] = []string{g.alias, rg.alias, slot.alias}
		}
	}
	return p
}

var gqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// quote renders s as a GraphQL string literal.
func quote(s string) string {
	return `"` + gqlEscaper.Replace(s) + `"`
}

func (g *repoGroup) open(b *strings.Builder) {
	fmt.Fprintf(b, "  %s: repository(owner: %s, name: %s) {\n", g.alias, quote(g.owner), quote(g.repo))
}

// contentQuery fetches blob text for every file.
func (p *batchPlan) contentQuery() string {
	var b strings.Builder
	b.WriteString("query {\n")
	for _, g := range p.repos {
		g.open(&b)
		for _, f := range g.files {
			fmt.Fprintf(&b, "    %s: object(expression: %s) { ... on Blob { text byteSize isTruncated } }\n",
				f.alias, quote(f.ref+":"+f.path))
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

const metadataFields = `stargazerCount forkCount watchers { totalCount } primaryLanguage { name } ` +
	`repositoryTopics(first: 20) { nodes { topic { name } } } createdAt updatedAt pushedAt ` +
	`defaultBranchRef { name } licenseInfo { spdxId } description`

// metadataQuery fetches repository attributes for every repository.
func (p *batchPlan) metadataQuery() string {
	var b strings.Builder
	b.WriteString("query {\n")
	for _, g := range p.repos {
		fmt.Fprintf(&b, "  %s: repository(owner: %s, name: %s) { %s }\n",
			g.alias, quote(g.owner), quote(g.repo), metadataFields)
	}
	b.WriteString("}\n")
	return b.String()
}

// historyQuery fetches recent commits for every file at its ref.
func (p *batchPlan) historyQuery(first int) string {
	var b strings.Builder
	b.WriteString("query {\n")
	for _, g := range p.repos {
		g.open(&b)
		for _, rg := range g.refs {
			fmt.Fprintf(&b, "    %s: object(expression: %s) {\n      ... on Commit {\n", rg.alias, quote(rg.ref))
			for _, f := range rg.files {
				fmt.Fprintf(&b,
					"        %s: history(first: %d, path: %s) { nodes { oid messageHeadline committedDate author { name } } }\n",
					f.alias, first, quote(f.path))
			}
			b.WriteString("      }\n    }\n")
		}
		b.WriteString("  }\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// batchResponse walks a response along a plan's alias paths.
// Decoded objects are memoised so shared parents are parsed once.
type batchResponse struct {
	plan *batchPlan
	root json.RawMessage
	memo map[string]map[string]json.RawMessage
}

func newBatchResponse(plan *batchPlan, data json.RawMessage) *batchResponse {
	return &batchResponse{plan: plan, root: data, memo: make(map[string]map[string]json.RawMessage)}
}

// node returns the raw value for input i. When a node on the path is null
// or absent it returns nil and the depth at which the walk stopped.
func (r *batchResponse) node(i int) (json.RawMessage, int) {
	cur := r.root
	key := ""
	for depth, alias := range r.plan.paths[i] {
		obj, ok := r.memo[key]
		if !ok {
			if err := json.Unmarshal(cur, &obj); err != nil {
				obj = nil
			}
			r.memo[key] = obj
		}
		next, ok := obj[alias]
		if !ok || isNull(next) {
			return nil, depth
		}
		cur = next
		key += "." + alias
	}
	return cur, -1
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
