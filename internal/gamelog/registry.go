package gamelog

import "sync"

var (
	mu      sync.RWMutex
	parsers = map[string]Parser{}
)

func Register(p Parser) {
	mu.Lock()
	defer mu.Unlock()
	parsers[p.Game()] = p
}

func Get(game string) Parser {
	mu.RLock()
	defer mu.RUnlock()
	return parsers[game]
}

func All() map[string]Parser {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]Parser, len(parsers))
	for k, v := range parsers {
		result[k] = v
	}
	return result
}
