// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、查询管线、
LLM、缓存与熔断器五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组。

# 主要能力

  - HTTP 指标：请求总数与耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 查询指标：查询总数（intent/quality/served_by）、端到端耗时、
    每次检索的文档数。served_by 区分 workflow、fallback 与 cache。
  - LLM 指标：请求总数、耗时、Token 用量（prompt/completion），
    按 provider/model 分组。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 熔断器指标：状态转换计数，按 breaker/from_state/to_state 分组。
*/
package metrics
