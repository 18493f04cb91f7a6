package irc

import (
	"sort"
	"strings"
	"sync"
)

// chanState tracks what the server has told us about one joined channel:
// the nick list with mode prefixes and the current topic.
type chanState struct {
	names   map[string]string // nick → mode prefix ("@", "+", ...)
	topic   string
	topicBy string

	// namesPending marks an in-flight NAMES burst; the first 353 after a
	// 366 starts a fresh list instead of appending to the stale one.
	namesPending bool
}

// state is the adapter's view of all joined channels, keyed by lowercased
// channel name. IRC does not preserve channel casing, so every access
// folds case.
type state struct {
	mu       sync.Mutex
	channels map[string]*chanState
}

func newState() *state {
	return &state{channels: make(map[string]*chanState)}
}

func (s *state) channel(name string) *chanState {
	key := strings.ToLower(name)
	cs, ok := s.channels[key]
	if !ok {
		cs = &chanState{names: make(map[string]string)}
		s.channels[key] = cs
	}
	return cs
}

// namesReply folds one 353 burst line into the channel's nick list.
func (s *state) namesReply(chanName, namesList string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.channel(chanName)
	if !cs.namesPending {
		cs.names = make(map[string]string)
		cs.namesPending = true
	}
	for _, raw := range strings.Fields(namesList) {
		nick := raw
		prefix := ""
		for len(nick) > 0 && strings.ContainsRune("@+%&~", rune(nick[0])) {
			prefix += string(nick[0])
			nick = nick[1:]
		}
		if nick != "" {
			cs.names[nick] = prefix
		}
	}
}

// namesDone marks the end of a NAMES burst.
func (s *state) namesDone(chanName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel(chanName).namesPending = false
}

func (s *state) addNick(chanName, nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel(chanName).names[nick] = ""
}

func (s *state) removeNick(chanName, nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channel(chanName).names, nick)
}

// removeNickEverywhere drops a nick from every channel and returns the
// channels it was present in, for quit fan-out.
func (s *state) removeNickEverywhere(nick string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var present []string
	for name, cs := range s.channels {
		if _, ok := cs.names[nick]; ok {
			delete(cs.names, nick)
			present = append(present, name)
		}
	}
	sort.Strings(present)
	return present
}

func (s *state) renameNick(oldNick, newNick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cs := range s.channels {
		if prefix, ok := cs.names[oldNick]; ok {
			delete(cs.names, oldNick)
			cs.names[newNick] = prefix
		}
	}
}

func (s *state) setTopic(chanName, topic, by string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.channel(chanName)
	cs.topic = topic
	cs.topicBy = by
}

func (s *state) setTopicBy(chanName, by string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel(chanName).topicBy = by
}

// nameList returns the channel's nicks with mode prefixes rendered as
// "(@)nick", sorted for stable output.
func (s *state) nameList(chanName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[strings.ToLower(chanName)]
	if !ok || len(cs.names) == 0 {
		return nil
	}
	out := make([]string, 0, len(cs.names))
	for nick, prefix := range cs.names {
		if prefix != "" {
			out = append(out, "("+prefix+")"+nick)
		} else {
			out = append(out, nick)
		}
	}
	sort.Strings(out)
	return out
}

func (s *state) topicOf(chanName string) (topic, by string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.channels[strings.ToLower(chanName)]
	if !ok {
		return "", ""
	}
	return cs.topic, cs.topicBy
}
