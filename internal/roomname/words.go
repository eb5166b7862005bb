package roomname

var adjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "cosy", "crisp", "dapper", "eager", "fancy",
	"gentle", "glad", "hazy", "humble", "jolly", "keen", "lively", "lucky", "mellow", "misty",
	"nimble", "plucky", "quiet", "rapid", "rosy", "snug", "sunny", "swift", "tidy", "witty",
}

var creatures = []string{
	"badger", "beetle", "bison", "crane", "cricket", "dingo", "egret", "ferret", "gecko", "heron",
	"ibex", "jackal", "kestrel", "lemur", "lynx", "magpie", "marten", "newt", "ocelot", "osprey",
	"panda", "puffin", "quokka", "raven", "salmon", "tapir", "toucan", "walrus", "wombat", "yak",
}

var things = []string{
	"anchor", "banjo", "beacon", "candle", "compass", "cymbal", "ember", "fiddle", "garnet", "harbor",
	"kettle", "lantern", "meadow", "mitten", "nectar", "orchard", "paddle", "pebble", "quill", "ribbon",
	"saddle", "signal", "teapot", "thimble", "trumpet", "tulip", "velvet", "whistle", "willow", "zephyr",
}
