// Package config defines the format-agnostic job definition, along with the
// interfaces (Loader, Writer) for reading and writing it in a concrete
// syntax.
//
// A JobDefinition mirrors the logical content of an analysis job: metadata,
// source columns, and components with their property values, column
// bindings and requirements. It carries no resolved descriptors or columns;
// the builder package turns it into a job graph and back. Concrete syntaxes,
// such as HCL, are provided in separate packages.
package config
