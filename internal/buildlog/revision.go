package buildlog

import (
	"errors"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
)

// DirtySuffix is appended to revisions whose worktree has uncommitted changes.
const DirtySuffix = "-dirty"

// Revision returns the HEAD commit of the git repository containing dir.
// An empty string without error means dir is not inside a repository or
// the repository has no commits yet.
func Revision(dir string) (string, error) {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, ggit.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", ferrors.WrapError(err, ferrors.CategoryGit, "open repository").WithContext("path", dir).Build()
	}
	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", ferrors.WrapError(err, ferrors.CategoryGit, "resolve HEAD").WithContext("path", dir).Build()
	}
	rev := ref.Hash().String()

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to be dirty.
		if errors.Is(err, ggit.ErrIsBareRepository) {
			return rev, nil
		}
		return rev, ferrors.WrapError(err, ferrors.CategoryGit, "open worktree").Build()
	}
	status, err := wt.Status()
	if err != nil {
		return rev, ferrors.WrapError(err, ferrors.CategoryGit, "worktree status").Build()
	}
	if !status.IsClean() {
		rev += DirtySuffix
	}
	return rev, nil
}
