package domain

// KeyPrefix namespaces all engine keys in the store.
const KeyPrefix = "contexta:"
