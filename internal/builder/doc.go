/*
Package builder is the mutable construction API for analysis jobs. It is the
bridge between the declarative job definition (the 'config' package) and the
immutable job graph consumed by the 'engine' package.

A Builder is an editing session. Its life has three phases:

 1. Wiring: source columns are added, components are created from registry
    descriptors, and each ComponentBuilder is configured with property
    values, column bindings and an optional requirement on an upstream
    filter outcome. Every mutation is type-checked as it happens, but
    transient incomplete states (a cleared value, a missing column) are
    legal.

 2. Observation: listeners are told about every mutation, synchronously and
    in the order the mutations happened.

 3. Freezing: ToAnalysisJob checks that every component is configured and
    hands the graph to job.New, which validates it as a whole. The builder
    remains usable afterwards; each call produces an independent snapshot.

A Builder is not safe for concurrent use. The jobs it produces are.
*/
package builder
