package goodseed

import "math/rand/v2"

// Word lists for readable run names (adjective-animal format).
var adjectives = []string{
	"agile", "bold", "calm", "daring", "eager", "fierce", "gentle", "happy",
	"idle", "jolly", "keen", "lively", "merry", "noble", "proud", "quick",
	"rapid", "serene", "swift", "tame", "unique", "vivid", "warm", "zealous",
	"amber", "azure", "coral", "dusty", "ebony", "frosty", "golden", "hazy",
	"ivory", "jade", "khaki", "lunar", "misty", "navy", "olive", "pearl",
}

var animals = []string{
	"albatross", "badger", "caracal", "dolphin", "eagle", "falcon", "gazelle",
	"heron", "ibis", "jaguar", "koala", "lemur", "meerkat", "narwhal", "otter",
	"panther", "quokka", "raven", "salmon", "toucan", "urchin", "viper", "walrus",
	"barracuda", "cheetah", "dragonfly", "flamingo", "giraffe", "hedgehog",
	"iguana", "jellyfish", "kestrel", "leopard", "mantis", "newt", "octopus",
	"pelican", "quail", "rhino", "starfish", "turtle", "vulture", "wombat",
}

// generateRunName returns a name like "bold-falcon".
func generateRunName() string {
	return adjectives[rand.IntN(len(adjectives))] + "-" + animals[rand.IntN(len(animals))]
}
