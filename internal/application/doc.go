// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of the symbol storage, handlers, routers,
// and HTTP server instances from resolved configuration, making the main
// package cleaner and more focused on CLI parsing and orchestration.
package application
