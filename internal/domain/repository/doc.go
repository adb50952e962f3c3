// Package repository define las interfaces de almacenamiento del dominio.
//
// El core nunca habla con una base de datos directamente: lee y escribe a
// través de estos contratos estrechos. Las implementaciones concretas viven en
// internal/store/ (memory, pg).
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│      vault / services / controllers                 │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│   KeyRepository, MarketRepository, Prediction...    │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	              ┌─────────┴─────────┐
//	              ▼                   ▼
//	       ┌─────────────┐     ┌─────────────┐
//	       │ store/memory│     │  store/pg   │
//	       └─────────────┘     └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los payloads son opacos ([]byte); el store nunca los interpreta
//   - Errores de dominio están en errors.go
package repository
