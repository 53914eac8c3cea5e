// Package gitrepo keeps the revision history of knowledge articles. Each
// article owns a small git repository whose single file, article.json, holds
// the title and markdown content of every saved version.
package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	contentFile = "article.json"
	branch      = "main"
)

// ErrNotFound is returned for unknown articles and revisions.
var ErrNotFound = errors.New("revision not found")

// Revision is the versioned part of an article.
type Revision struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Commit describes one saved revision.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records rev as the newest revision of the article, creating the
// repository on first use. Saving unchanged content returns the current head.
func (s *Service) Commit(articleID string, rev Revision, author, message string) (Commit, error) {
	path, err := s.repoPath(articleID)
	if err != nil {
		return Commit{}, err
	}
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := openOrInit(path)
	if err != nil {
		return Commit{}, err
	}

	if head, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true); err == nil {
		headCommit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Commit{}, fmt.Errorf("load head commit: %w", err)
		}
		if current, err := readRevision(headCommit); err == nil && current == rev {
			return toCommit(headCommit), nil
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(rev, "", "  ")
	if err != nil {
		return Commit{}, fmt.Errorf("marshal revision: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, contentFile), append(payload, '\n'), 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Commit{}, fmt.Errorf("git add revision: %w", err)
	}

	if strings.TrimSpace(message) == "" {
		message = "Update " + rev.Title
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  nonEmpty(author, "Staff"),
			Email: sanitizeEmail(author) + "@helpdesk.local",
			When:  s.now(),
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit revision: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// History lists revisions newest first. An article that was never committed
// has an empty history.
func (s *Service) History(articleID string, limit int) ([]Commit, error) {
	path, err := s.repoPath(articleID)
	if err != nil {
		return nil, err
	}
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// RevisionAt returns the article as it was at hash. Short hashes are accepted.
func (s *Service) RevisionAt(articleID, hash string) (Revision, Commit, error) {
	path, err := s.repoPath(articleID)
	if err != nil {
		return Revision{}, Commit{}, err
	}
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Revision{}, Commit{}, ErrNotFound
	}
	if err != nil {
		return Revision{}, Commit{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Revision{}, Commit{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return Revision{}, Commit{}, ErrNotFound
	}
	if err != nil {
		return Revision{}, Commit{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	rev, err := readRevision(commitObj)
	if err != nil {
		return Revision{}, Commit{}, err
	}
	return rev, toCommit(commitObj), nil
}

// Remove deletes the article's repository. Missing repositories are ignored.
func (s *Service) Remove(articleID string) error {
	path, err := s.repoPath(articleID)
	if err != nil {
		return err
	}
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	s.lockMu.Lock()
	delete(s.locks, articleID)
	s.lockMu.Unlock()
	return nil
}

func (s *Service) repoPath(articleID string) (string, error) {
	if articleID == "" || articleID == "." || articleID == ".." || strings.ContainsAny(articleID, `/\`) {
		return "", fmt.Errorf("invalid article id %q", articleID)
	}
	return filepath.Join(s.baseDir, articleID), nil
}

func (s *Service) articleLock(articleID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[articleID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[articleID] = lock
	}
	return lock
}

func openOrInit(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func readRevision(commitObj *object.Commit) (Revision, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Revision{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	raw, err := file.Contents()
	if err != nil {
		return Revision{}, fmt.Errorf("read revision: %w", err)
	}
	var rev Revision
	if err := json.Unmarshal([]byte(raw), &rev); err != nil {
		return Revision{}, fmt.Errorf("decode revision: %w", err)
	}
	return rev, nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When.UTC(),
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) < 4 || len(hash) > 40 || strings.Trim(hash, "0123456789abcdef") != "" {
		return plumbing.ZeroHash, ErrNotFound
	}
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, ErrNotFound
	}
	return *resolved, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			out = append(out, '.')
		}
	}
	local := strings.Trim(string(out), ".")
	if local == "" {
		return "staff"
	}
	return local
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
