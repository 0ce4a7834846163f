package anneal

// Version is the current release of the library.
var Version = "0.1.0"
