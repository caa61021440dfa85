// Package alliance implements alliance membership within one chat. The
// player's Alliance field is only a back-reference; it is kept in step with
// the alliance's member list by the functions here.
package alliance

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
)

const MaxNameLen = 40

func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func ValidateName(name string) bool {
	n := NormalizeName(name)
	return n != "" && utf8.RuneCountInString(n) <= MaxNameLen
}

type Summary struct {
	Name        string `json:"name"`
	CreatorID   int64  `json:"creator_id"`
	MemberCount int    `json:"member_count"`
}

// Create founds a new alliance with p as its only member.
func Create(c *model.Chat, p *model.Player, name string, now time.Time) (*model.Alliance, error) {
	if !ValidateName(name) {
		return nil, errs.ErrInvalidName
	}
	name = NormalizeName(name)
	if p.Alliance != "" {
		return nil, errs.ErrAlreadyInAlliance.Withf("already in alliance %q", p.Alliance)
	}
	if _, taken := c.Alliances[name]; taken {
		return nil, errs.ErrNameTaken.Withf("alliance %q already exists", name)
	}
	c.NextAllianceSeq++
	a := &model.Alliance{
		Name:      name,
		CreatorID: p.ID,
		Members:   []int64{p.ID},
		Seq:       c.NextAllianceSeq,
		CreatedAt: now.UTC(),
	}
	c.Alliances[name] = a
	p.Alliance = name
	return a, nil
}

// Join adds p to an existing alliance. A player can be in one alliance at a
// time, so joining the alliance you are already in fails the same way as
// joining any other.
func Join(c *model.Chat, p *model.Player, name string) (*model.Alliance, error) {
	name = NormalizeName(name)
	if p.Alliance != "" {
		return nil, errs.ErrAlreadyInAlliance.Withf("already in alliance %q", p.Alliance)
	}
	a, ok := c.Alliances[name]
	if !ok {
		return nil, errs.ErrNotFound.Withf("alliance %q not found", name)
	}
	if !a.HasMember(p.ID) {
		a.Members = append(a.Members, p.ID)
	}
	p.Alliance = name
	return a, nil
}

// Leave removes p from its alliance and deletes the alliance once it has no
// members left. It returns the alliance name and whether it was deleted.
func Leave(c *model.Chat, p *model.Player) (string, bool, error) {
	name := p.Alliance
	if name == "" {
		return "", false, errs.ErrNotInAlliance
	}
	p.Alliance = ""
	a, ok := c.Alliances[name]
	if !ok {
		return name, false, nil
	}
	a.Members = slices.DeleteFunc(a.Members, func(id int64) bool { return id == p.ID })
	if len(a.Members) == 0 {
		delete(c.Alliances, name)
		return name, true, nil
	}
	return name, false, nil
}

// List returns every alliance of the chat in creation order.
func List(c *model.Chat) []Summary {
	all := c.SortedAlliances()
	out := make([]Summary, 0, len(all))
	for _, a := range all {
		out = append(out, Summary{Name: a.Name, CreatorID: a.CreatorID, MemberCount: len(a.Members)})
	}
	return out
}
