// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理查询服务 HTTP 入口的生命周期：非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：包装 net/http.Server，持有监听器与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown 生命周期方法。
  - Config：监听地址与各类超时。写超时默认关闭，SSE 回答流
    的时长由请求上下文控制。

# 主要能力

  - 非阻塞启动：Start 绑定端口后在后台 goroutine 中服务，
    以 ":0" 启动时可通过 Addr 取得实际端口。
  - 优雅关闭：Shutdown 在配置的超时内排空在途请求，重复调用
    为空操作，关闭后不可重新启动。
  - 信号监听：WaitForShutdown 阻塞至 SIGINT/SIGTERM 或服务
    异常退出，然后自动触发优雅关闭。
*/
package server
