package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirphl/chat-sequencer/utils"
)

var (
	ErrUnknownFamily   = errors.New("unknown parent family")
	ErrMalformedMember = errors.New("malformed dirty-set member")
)

// Family names the kind of parent a sequence is allocated under
type Family string

const (
	FamilyChats    Family = "chats"
	FamilyMessages Family = "messages"
)

// Families lists every family in reconciliation order
var Families = []Family{FamilyChats, FamilyMessages}

func (f Family) String() string { return string(f) }

// ChangesSet returns the dirty set tracking this family
func (f Family) ChangesSet() string {
	switch f {
	case FamilyChats:
		return utils.ChatChangesSet
	case FamilyMessages:
		return utils.MessageChangesSet
	default:
		return ""
	}
}

// ParseFamily maps a textual family name to a Family
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case FamilyChats, FamilyMessages:
		return Family(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// ParentKey identifies the scope a sequence is allocated under
type ParentKey interface {
	Family() Family
	// CounterKey is the counter store key holding the current sequence value
	CounterKey() string
	// Member is the parent's representation inside the family's dirty set
	Member() string
}

// ChatParent scopes chat numbers to an application
type ChatParent struct {
	Token string
}

func (p ChatParent) Family() Family { return FamilyChats }

func (p ChatParent) CounterKey() string {
	return utils.ChatCounterPrefix + utils.KeySeparator + p.Token
}

func (p ChatParent) Member() string { return p.Token }

// MessageParent scopes message numbers to a chat
type MessageParent struct {
	Token      string
	ChatNumber int64
}

func (p MessageParent) Family() Family { return FamilyMessages }

func (p MessageParent) CounterKey() string {
	return utils.MessageCounterPrefix + utils.KeySeparator + p.Member()
}

func (p MessageParent) Member() string {
	return p.Token + utils.KeySeparator + strconv.FormatInt(p.ChatNumber, 10)
}

// ParseParentKey rebuilds a parent key from a dirty-set member
func ParseParentKey(family Family, member string) (ParentKey, error) {
	switch family {
	case FamilyChats:
		if member == "" {
			return nil, fmt.Errorf("%w: empty token", ErrMalformedMember)
		}
		return ChatParent{Token: member}, nil
	case FamilyMessages:
		idx := strings.LastIndex(member, utils.KeySeparator)
		if idx <= 0 || idx == len(member)-1 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedMember, member)
		}
		chatNumber, err := strconv.ParseInt(member[idx+1:], 10, 64)
		if err != nil || chatNumber <= 0 {
			return nil, fmt.Errorf("%w: invalid chat number in %q", ErrMalformedMember, member)
		}
		return MessageParent{Token: member[:idx], ChatNumber: chatNumber}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
}
