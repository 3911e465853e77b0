// Package model contains all domain models and data structures for the messaging core.
package model

const tablePrefix = "chat_"
