package library

import "github.com/hazyhaar/promptdock/library/internal/store"

type (
	Prompt   = store.Prompt
	Category = store.Category
)
