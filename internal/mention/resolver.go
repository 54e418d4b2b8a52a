package mention

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/tracker/internal/domain"
)

// Directory はユーザーディレクトリ全体のスナップショットを返す。
type Directory interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Resolver はメンション候補をユーザーIDに解決する。
type Resolver struct {
	dir Directory
}

// NewResolver は新しいResolverを生成する。
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve はtermsをユーザーIDに解決する。
// membersがnilでなければ、候補をそのIDのユーザーに限定する。
func (r *Resolver) Resolve(ctx context.Context, terms []string, members []string) ([]string, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	users, err := r.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザーディレクトリの取得に失敗: %w", err)
	}
	if members != nil {
		users = restrict(users, members)
	}
	return Match(terms, users), nil
}

// Match はスナップショットusersに対してtermsを解決する。
// 候補は表示名と完全一致するか、メールアドレスのローカル部が候補で始まるユーザーに一致する。
// 比較は大文字小文字を区別しない。一致がちょうど1人の候補だけを採用し、
// 0人または複数人に一致した候補は黙って捨てる。
func Match(terms []string, users []domain.User) []string {
	type folded struct {
		id, name, local string
	}
	dir := make([]folded, len(users))
	for i, u := range users {
		dir[i] = folded{id: u.ID, name: fold(u.DisplayName), local: fold(u.EmailLocalPart())}
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, term := range terms {
		t := fold(term)
		if t == "" {
			continue
		}
		match := ""
		count := 0
		for _, u := range dir {
			if u.name == t || strings.HasPrefix(u.local, t) {
				match = u.id
				count++
				if count > 1 {
					break
				}
			}
		}
		if count != 1 {
			continue
		}
		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		ids = append(ids, match)
	}
	return ids
}

func restrict(users []domain.User, members []string) []domain.User {
	allowed := make(map[string]struct{}, len(members))
	for _, id := range members {
		allowed[id] = struct{}{}
	}
	out := make([]domain.User, 0, len(members))
	for _, u := range users {
		if _, ok := allowed[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}
