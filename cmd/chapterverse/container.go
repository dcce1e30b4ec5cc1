package main

import (
	"github.com/samber/do/v2"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/output"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

// newContainer wires the CLI's services. Providers are lazy, so commands
// that never ask for the engine never open the database.
func newContainer(cfg *storage.Config) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, provideEngine)
	do.Provide(injector, provideFormatter)

	return injector
}

// provideEngine opens storage and the network clients. The engine
// implements Shutdown, so the container drains and closes it.
func provideEngine(i do.Injector) (*chapterverse.Engine, error) {
	cfg := do.MustInvoke[*storage.Config](i)
	return chapterverse.NewEngine(chapterverse.ConfigFromFile(cfg))
}

func provideFormatter(i do.Injector) (*output.Formatter, error) {
	return output.NewFormatter(output.Format(outputFormat)), nil
}
