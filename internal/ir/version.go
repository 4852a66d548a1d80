package ir

// EngineVersion is stamped on every journaled cycle.
const EngineVersion = "0.1.0"
