package server

// topicSubs holds the sessions following one topic, indexed by user so a
// revoked membership can drop every session of that user at once.
type topicSubs struct {
	clients map[*Client]struct{}
	userMap map[int]map[*Client]struct{}
}

func newTopicSubs() *topicSubs {
	return &topicSubs{
		clients: make(map[*Client]struct{}),
		userMap: make(map[int]map[*Client]struct{}),
	}
}

func (t *topicSubs) add(c *Client) bool {
	if _, ok := t.clients[c]; ok {
		return false
	}

	t.clients[c] = struct{}{}
	if t.userMap[c.user.Id] == nil {
		t.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	t.userMap[c.user.Id][c] = struct{}{}

	return true
}

func (t *topicSubs) remove(c *Client) bool {
	if _, ok := t.clients[c]; !ok {
		return false
	}

	delete(t.clients, c)
	if sessions, ok := t.userMap[c.user.Id]; ok {
		delete(sessions, c)
		if len(sessions) == 0 {
			delete(t.userMap, c.user.Id)
		}
	}

	return true
}

func (t *topicSubs) removeUser(userId int) []*Client {
	var removed []*Client
	for c := range t.userMap[userId] {
		delete(t.clients, c)
		removed = append(removed, c)
	}
	delete(t.userMap, userId)

	return removed
}

func (t *topicSubs) empty() bool {
	return len(t.clients) == 0
}

// subscriptions maps topics to their sessions. It is owned by the hub
// goroutine and needs no locking.
type subscriptions map[string]*topicSubs

func (s subscriptions) add(topic string, c *Client) bool {
	subs, ok := s[topic]
	if !ok {
		subs = newTopicSubs()
		s[topic] = subs
	}

	return subs.add(c)
}

func (s subscriptions) remove(topic string, c *Client) bool {
	subs, ok := s[topic]
	if !ok {
		return false
	}

	removed := subs.remove(c)
	if subs.empty() {
		delete(s, topic)
	}

	return removed
}

// removeClient drops c from every topic and reports how many it left.
func (s subscriptions) removeClient(c *Client) int {
	n := 0
	for topic := range s {
		if s.remove(topic, c) {
			n++
		}
	}

	return n
}

func (s subscriptions) removeUser(topic string, userId int) []*Client {
	subs, ok := s[topic]
	if !ok {
		return nil
	}

	removed := subs.removeUser(userId)
	if subs.empty() {
		delete(s, topic)
	}

	return removed
}

func (s subscriptions) clients(topic string) []*Client {
	subs, ok := s[topic]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(subs.clients))
	for c := range subs.clients {
		clients = append(clients, c)
	}

	return clients
}
