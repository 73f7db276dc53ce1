// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package telemetry 装配 OpenTelemetry SDK：OTLP gRPC 导出的
// TracerProvider 与 MeterProvider，以及 W3C TraceContext 传播。
// 遥测禁用时退化为 noop，不连接任何外部服务。
package telemetry
